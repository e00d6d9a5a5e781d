package ingest

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"newslens/internal/headlines"
)

var (
	// NewsAPI truncates content and appends "[+1234 chars]".
	truncationMarker = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)
	markdownLink     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	markdownEscape   = regexp.MustCompile(`\\([\\*_\[\]()#+\-.!>` + "`" + `])`)
	looksLikeHTML    = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
	blankRun         = regexp.MustCompile(`\n{3,}`)
)

// cleaner turns upstream fields into plain text for storage and
// classification.
type cleaner struct {
	conv *md.Converter
}

func newCleaner() *cleaner {
	return &cleaner{conv: md.NewConverter("", true, nil)}
}

func (c *cleaner) text(s string) string {
	s = truncationMarker.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return ""
	}

	if looksLikeHTML.MatchString(s) {
		out, err := c.conv.ConvertString(s)
		if err == nil {
			s = out
		}
		s = markdownLink.ReplaceAllString(s, "$1")
		s = markdownEscape.ReplaceAllString(s, "$1")
		s = strings.NewReplacer("**", "", "__", "").Replace(s)
	} else {
		s = html.UnescapeString(s)
	}

	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func (c *cleaner) raw(r headlines.RawArticle) headlines.RawArticle {
	r.Title = strings.TrimSpace(html.UnescapeString(r.Title))
	r.Description = c.text(r.Description)
	r.Content = c.text(r.Content)
	r.Source.Name = strings.TrimSpace(r.Source.Name)
	r.URL = strings.TrimSpace(r.URL)
	r.URLToImage = strings.TrimSpace(r.URLToImage)
	return r
}

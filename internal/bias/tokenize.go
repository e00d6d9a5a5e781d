package bias

import (
	"sort"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball/english"
)

// minSignificantLen is the shortest token counted for term frequency.
// Shorter tokens are still scanned against the lexicon.
const minSignificantLen = 3

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"as": {}, "from": {}, "has": {}, "have": {}, "had": {}, "not": {},
	"will": {}, "would": {}, "can": {}, "said": {}, "says": {},
}

// Tokenize splits text on Unicode word boundaries and returns the lowercase
// segments that contain at least one letter or digit.
func Tokenize(text string) []string {
	_, spans := tokenSpans(strings.ToLower(text))
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.text
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// span is a word token and its byte range in the text it was cut from.
type span struct {
	text       string
	start, end int
}

// tokenSpans segments lower and returns it with the word spans found in it.
func tokenSpans(lower string) (string, []span) {
	if strings.TrimSpace(lower) == "" {
		return lower, nil
	}

	var out []span
	seg := words.FromString(lower)
	for seg.Next() {
		tok := seg.Value()
		if isWord(tok) {
			out = append(out, span{text: tok, start: seg.Start(), end: seg.End()})
		}
	}
	return lower, out
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Stem reduces a lowercase token to its English (Porter2) root.
func Stem(token string) string {
	return english.Stem(token, false)
}

// StemAll stems every token, preserving order.
func StemAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Stem(t)
	}
	return out
}

// IsStopWord reports whether token is a common function word.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Significant reports whether a token counts toward term frequency.
func Significant(token string) bool {
	return len(token) >= minSignificantLen && !IsStopWord(token)
}

// SignificantTerms returns up to n of the most frequent significant stems.
// Ties keep first-seen order.
func SignificantTerms(stems []string, n int) []string {
	if n <= 0 {
		return nil
	}

	freq := make(map[string]int)
	var order []string
	for _, s := range stems {
		if !Significant(s) {
			continue
		}
		if freq[s] == 0 {
			order = append(order, s)
		}
		freq[s]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

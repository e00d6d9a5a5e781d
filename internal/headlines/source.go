// Package headlines fetches raw top-headline items from upstream providers.
package headlines

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// RawArticle is an upstream item before cleaning and classification. Fields
// follow the NewsAPI article shape; other providers map into it.
type RawArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Source      RawSource `json:"source"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
}

type RawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Source is implemented by each upstream provider.
type Source interface {
	Name() string
	TopHeadlines(ctx context.Context, category string, pageSize int, country string) ([]RawArticle, error)
}

// Multi queries several sources for the same category and merges the
// results, dropping repeated URLs. A failing source is logged and skipped;
// Multi only fails when every source does.
type Multi struct {
	Sources []Source
	Logger  zerolog.Logger
}

var _ Source = (*Multi)(nil)

func NewMulti(logger zerolog.Logger, sources ...Source) *Multi {
	return &Multi{Sources: sources, Logger: logger.With().Str("component", "headlines").Logger()}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.Sources))
	for i, s := range m.Sources {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m *Multi) TopHeadlines(ctx context.Context, category string, pageSize int, country string) ([]RawArticle, error) {
	seen := make(map[string]struct{})
	var (
		out  []RawArticle
		errs []error
	)

	for _, src := range m.Sources {
		items, err := src.TopHeadlines(ctx, category, pageSize, country)
		if err != nil {
			m.Logger.Warn().Err(err).Str("source", src.Name()).Str("category", category).Msg("source failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		for _, it := range items {
			key := canonicalURL(it.URL)
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			out = append(out, it)
		}
	}

	if len(errs) > 0 && len(errs) == len(m.Sources) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// canonicalURL lowercases scheme and host and drops the fragment and a
// trailing slash, so the same story from two feeds collapses.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

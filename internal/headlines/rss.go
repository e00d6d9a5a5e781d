package headlines

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSS serves one feed per category. Categories without a feed yield no
// items and no error.
type RSS struct {
	Feeds  map[string]string
	Client *http.Client
	parser *gofeed.Parser
}

var _ Source = (*RSS)(nil)

func NewRSS(feeds map[string]string) *RSS {
	return &RSS{
		Feeds:  feeds,
		Client: &http.Client{Timeout: 10 * time.Second},
		parser: gofeed.NewParser(),
	}
}

func (s *RSS) Name() string { return "rss" }

func (s *RSS) TopHeadlines(ctx context.Context, category string, pageSize int, _ string) ([]RawArticle, error) {
	feedURL := s.Feeds[category]
	if feedURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rss: build request: %w", err)
	}
	req.Header.Set("User-Agent", "newslens/1.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss: status %d from %s", resp.StatusCode, feedURL)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rss: parse feed: %w", err)
	}

	result := make([]RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if pageSize > 0 && len(result) >= pageSize {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		ra := RawArticle{
			Title:       item.Title,
			Description: item.Description,
			Content:     item.Content,
			Source:      RawSource{Name: feed.Title},
			URL:         item.Link,
		}
		if item.Image != nil {
			ra.URLToImage = item.Image.URL
		}
		if item.PublishedParsed != nil {
			ra.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		result = append(result, ra)
	}
	return result, nil
}

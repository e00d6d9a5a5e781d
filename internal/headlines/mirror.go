package headlines

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"newslens/pkg/models"
)

// Mirror is an offline headline snapshot keyed by category. It is the file
// format of data/mirror.json.
type Mirror map[string][]RawArticle

// LoadMirror reads and validates a snapshot file.
func LoadMirror(path string) (Mirror, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	var m Mirror
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("mirror invalid JSON: %w", err)
	}
	for cat := range m {
		if _, ok := models.ParseCategory(cat); !ok {
			return nil, fmt.Errorf("mirror: unknown category %q", cat)
		}
	}
	return m, nil
}

// MirrorHandler answers GET /top-headlines in the NewsAPI response shape
// from a snapshot, so the NewsAPI client can run against it offline. load is
// called per request so the file can be edited while the server runs.
func MirrorHandler(load func() (Mirror, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("apiKey") == "" {
			c.JSON(http.StatusUnauthorized, newsAPIResponse{
				Status:  "error",
				Code:    "apiKeyMissing",
				Message: "Your API key is missing.",
			})
			return
		}

		m, err := load()
		if err != nil {
			c.JSON(http.StatusInternalServerError, newsAPIResponse{Status: "error", Code: "unexpectedError", Message: err.Error()})
			return
		}

		items := m[strings.ToLower(strings.TrimSpace(c.Query("category")))]
		if n, err := strconv.Atoi(c.Query("pageSize")); err == nil && n >= 0 && n < len(items) {
			items = items[:n]
		}
		if items == nil {
			items = []RawArticle{}
		}

		c.JSON(http.StatusOK, newsAPIResponse{Status: "ok", TotalResults: len(items), Articles: items})
	}
}

// MirrorFromArticles builds a snapshot from stored articles.
func MirrorFromArticles(as []models.Article) Mirror {
	m := make(Mirror)
	for _, a := range as {
		cat := string(a.Category)
		m[cat] = append(m[cat], RawArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			Source:      RawSource{Name: a.Source},
			URL:         a.URL,
			URLToImage:  a.ImageURL,
			PublishedAt: a.PublishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return m
}

package ingest

import (
	"time"

	"newslens/pkg/models"
)

// SampleArticles is what a cycle returns when no upstream is configured.
// They are never persisted.
func SampleArticles(now time.Time) []models.Article {
	return []models.Article{
		{
			ID:          "sample-1",
			Title:       "Sample: Climate Bill Passes Senate",
			Description: "A landmark bill passes.",
			Source:      "Reuters",
			URL:         "#sample-1",
			PublishedAt: now,
			Category:    models.CategoryPolitics,
			Bias:        models.Bias{Score: 0.1, Label: models.BiasNeutral, Keywords: []string{}},
			CreatedAt:   now,
		},
		{
			ID:          "sample-2",
			Title:       "Sample: Tech Giant Unveils New AI",
			Description: "The new AI system is here.",
			Source:      "TechNews",
			URL:         "#sample-2",
			PublishedAt: now,
			Category:    models.CategoryTechnology,
			Bias:        models.Bias{Score: 0, Label: models.BiasCenter, Keywords: []string{}},
			CreatedAt:   now,
		},
	}
}

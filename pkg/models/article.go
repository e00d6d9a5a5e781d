package models

import (
	"strings"
	"time"
)

// Category is the fixed set of topics an article can be filed under.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryTechnology    Category = "technology"
	CategoryPolitics      Category = "politics"
	CategoryBusiness      Category = "business"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryHealth        Category = "health"
	CategoryScience       Category = "science"
)

// AllCategories lists every category, general first.
var AllCategories = []Category{
	CategoryGeneral,
	CategoryTechnology,
	CategoryPolitics,
	CategoryBusiness,
	CategoryEntertainment,
	CategorySports,
	CategoryHealth,
	CategoryScience,
}

// ParseCategory normalizes s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCategories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// BiasLabel is the persisted bias verdict.
type BiasLabel string

const (
	BiasLeft    BiasLabel = "left"
	BiasCenter  BiasLabel = "center"
	BiasRight   BiasLabel = "right"
	BiasNeutral BiasLabel = "neutral"
)

// AllBiasLabels lists the persisted labels in display order.
var AllBiasLabels = []BiasLabel{BiasLeft, BiasCenter, BiasRight, BiasNeutral}

// ParseBiasLabel normalizes s and reports whether it names a persisted label.
func ParseBiasLabel(s string) (BiasLabel, bool) {
	l := BiasLabel(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllBiasLabels {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// Bias is the classifier verdict embedded in an article.
type Bias struct {
	Score      float64   `json:"score"`
	Label      BiasLabel `json:"label"`
	Confidence float64   `json:"confidence"`
	Keywords   []string  `json:"keywords"`
}

// Article is one ingested headline. URL is its identity.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Category    Category  `json:"category"`
	Bias        Bias      `json:"bias"`
	Terms       []string  `json:"terms,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

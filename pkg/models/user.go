package models

import "time"

// Preferences drive the personalized feed.
type Preferences struct {
	Topics     []Category `json:"topics"`
	Sources    []string   `json:"sources"`
	BiasFilter string     `json:"biasFilter"`
}

// DefaultPreferences is what a freshly registered user gets.
func DefaultPreferences() Preferences {
	return Preferences{
		Topics:     []Category{CategoryTechnology, CategoryPolitics, CategoryBusiness, CategoryEntertainment},
		Sources:    []string{},
		BiasFilter: "all",
	}
}

type InteractionKind string

const (
	InteractionLike InteractionKind = "like"
	InteractionSave InteractionKind = "save"
)

type HistoryEntry struct {
	ArticleID string    `json:"articleId"`
	Article   *Article  `json:"article,omitempty"`
	ReadAt    time.Time `json:"readAt"`
}

type UserStats struct {
	TotalRead  int `json:"totalRead"`
	TotalLiked int `json:"totalLiked"`
	TotalSaved int `json:"totalSaved"`
}

// Package category files an article under one of the fixed topics.
package category

import (
	"strings"

	"newslens/pkg/models"
)

type rule struct {
	category models.Category
	needles  []string
}

// rules are checked in order and the first hit wins. The order is a
// heuristic: an article about "tech policy in Congress" lands in technology.
var rules = []rule{
	{models.CategoryTechnology, []string{"tech", "ai", "software", "apple", "google", "microsoft", "startup", "crypto"}},
	{models.CategoryPolitics, []string{"politic", "election", "congress", "white house", "senate", "democrat", "republican"}},
	{models.CategoryBusiness, []string{"business", "economy", "stocks", "market", "finance", "corporate", "wall street"}},
	{models.CategoryHealth, []string{"health", "medical", "fda", "covid", "disease", "hospital", "pandemic"}},
	{models.CategorySports, []string{"sport", "nfl", "nba", "olympic", "soccer", "ufc", "mma", "game", "league"}},
	{models.CategoryEntertainment, []string{"entertainment", "movie", "music", "hollywood", "celebrity", "film", "grammy"}},
	{models.CategoryScience, []string{"science", "nasa", "space", "climate", "planet", "research", "discovery"}},
}

// Assign returns the fetch-context category when it is a known, specific
// category. Otherwise it sniffs title and description for topic substrings
// and falls back to general.
func Assign(title, description, contextCategory string) models.Category {
	if c, ok := models.ParseCategory(contextCategory); ok && c != models.CategoryGeneral {
		return c
	}
	return Sniff(title + " " + description)
}

// Sniff matches text against the substring rules only.
func Sniff(text string) models.Category {
	text = strings.ToLower(text)
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(text, n) {
				return r.category
			}
		}
	}
	return models.CategoryGeneral
}

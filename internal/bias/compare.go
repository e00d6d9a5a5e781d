package bias

import "newslens/pkg/models"

// Comparison is one row of a side-by-side bias comparison.
type Comparison struct {
	Source string      `json:"source"`
	Title  string      `json:"title"`
	Bias   models.Bias `json:"bias"`
}

// Compare classifies each article and returns rows in input order.
func Compare(lx *Lexicon, articles []models.Article) []Comparison {
	out := make([]Comparison, 0, len(articles))
	for _, a := range articles {
		r := ClassifyArticle(lx, a.Title, a.Description, a.Content)
		out = append(out, Comparison{
			Source: a.Source,
			Title:  a.Title,
			Bias:   r.Bias(),
		})
	}
	return out
}

package articles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"newslens/pkg/models"
)

// ErrDuplicate is returned by Insert when an article with the same URL is
// already stored.
var ErrDuplicate = errors.New("article url already exists")

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Categories []models.Category // any-match; empty means all
	Bias       string            // persisted label or "" / "all"
	Source     string            // case-insensitive substring
	Limit      int
	Offset     int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const articleColumns = `
	id, title, description, content, source, url, image_url, published_at, category,
	bias_score, bias_label, bias_confidence, bias_keywords, terms, created_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (models.Article, error) {
	var (
		a            models.Article
		category     string
		label        string
		keywordsJSON string
		termsJSON    string
	)
	if err := s.Scan(
		&a.ID, &a.Title, &a.Description, &a.Content, &a.Source, &a.URL, &a.ImageURL,
		&a.PublishedAt, &category, &a.Bias.Score, &label, &a.Bias.Confidence,
		&keywordsJSON, &termsJSON, &a.CreatedAt,
	); err != nil {
		return models.Article{}, err
	}

	a.Category = models.Category(category)
	a.Bias.Label = models.BiasLabel(label)
	_ = json.Unmarshal([]byte(keywordsJSON), &a.Bias.Keywords)
	_ = json.Unmarshal([]byte(termsJSON), &a.Terms)
	if a.Bias.Keywords == nil {
		a.Bias.Keywords = []string{}
	}
	return a, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)

	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &a, nil
}

// FindByURL returns the stored article for url, or nil.
func (r *Repo) FindByURL(ctx context.Context, url string) (*models.Article, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE url = ?`, url)

	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by url: %w", err)
	}
	return &a, nil
}

// GetByIDs loads several articles at once. Missing ids are absent from the
// map.
func (r *Repo) GetByIDs(ctx context.Context, ids []string) (map[string]models.Article, error) {
	out := make(map[string]models.Article, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("get by ids scan: %w", err)
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Insert stores a new article. It returns ErrDuplicate when the URL is
// already present, including when a concurrent insert won the race.
func (r *Repo) Insert(ctx context.Context, a *models.Article) error {
	keywords := a.Bias.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	terms := a.Terms
	if terms == nil {
		terms = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords for %s: %w", a.URL, err)
	}
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("marshal terms for %s: %w", a.URL, err)
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`,
		a.ID, a.Title, a.Description, a.Content, a.Source, a.URL, a.ImageURL,
		a.PublishedAt.UTC(), string(a.Category), a.Bias.Score, string(a.Bias.Label),
		a.Bias.Confidence, string(keywordsJSON), string(termsJSON), a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", a.URL, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert article rows: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

// List returns one page of articles, newest first.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Article, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Article, 0, q.Limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL builds either COUNT(*) or SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + articleColumns + ` FROM articles`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM articles`
	}

	var where []string
	var args []any

	if len(q.Categories) > 0 {
		where = append(where, "category IN ("+strings.TrimSuffix(strings.Repeat("?,", len(q.Categories)), ",")+")")
		for _, c := range q.Categories {
			args = append(args, string(c))
		}
	}

	if b := strings.ToLower(strings.TrimSpace(q.Bias)); b != "" && b != "all" {
		where = append(where, "bias_label = ?")
		args = append(args, b)
	}

	if s := strings.ToLower(strings.TrimSpace(q.Source)); s != "" && s != "all" {
		where = append(where, "LOWER(source) LIKE ?")
		args = append(args, "%"+s+"%")
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY published_at DESC, created_at DESC, id ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		args = append(args, clampLimit(q.Limit), max(q.Offset, 0))
	}

	return sqlStr, args
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// DistinctCategories returns the categories that have at least one article.
func (r *Repo) DistinctCategories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "category")
}

// DistinctSources returns every publisher name seen so far.
func (r *Repo) DistinctSources(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "source")
}

func (r *Repo) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT `+column+` FROM articles ORDER BY `+column+` ASC`)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("distinct %s scan: %w", column, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// CountByBiasLabel counts articles per persisted label. Every label is
// present in the result, zero when unused.
func (r *Repo) CountByBiasLabel(ctx context.Context) (map[models.BiasLabel]int, error) {
	out := make(map[models.BiasLabel]int, len(models.AllBiasLabels))
	for _, l := range models.AllBiasLabels {
		out[l] = 0
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT bias_label, COUNT(*) FROM articles GROUP BY bias_label`)
	if err != nil {
		return nil, fmt.Errorf("count by bias: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("count by bias scan: %w", err)
		}
		if l, ok := models.ParseBiasLabel(label); ok {
			out[l] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count all: %w", err)
	}
	return n, nil
}

package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newslens/internal/articles"
	"newslens/pkg/models"
)

// historyLimit caps how many reading-history entries are returned.
const historyLimit = 50

type Repo struct {
	DB       *sql.DB
	Articles *articles.Repo
}

func NewRepo(db *sql.DB, articleRepo *articles.Repo) *Repo {
	return &Repo{DB: db, Articles: articleRepo}
}

// Preferences returns the stored preferences or the defaults when the user
// never saved any.
func (r *Repo) Preferences(ctx context.Context, userID string) (models.Preferences, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT topics, sources, bias_filter
		FROM user_preferences
		WHERE user_id = ?
	`, userID)

	var topicsJSON, sourcesJSON, biasFilter string
	if err := row.Scan(&topicsJSON, &sourcesJSON, &biasFilter); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultPreferences(), nil
		}
		return models.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}

	p := models.Preferences{BiasFilter: biasFilter}
	_ = json.Unmarshal([]byte(topicsJSON), &p.Topics)
	_ = json.Unmarshal([]byte(sourcesJSON), &p.Sources)
	if p.Topics == nil {
		p.Topics = []models.Category{}
	}
	if p.Sources == nil {
		p.Sources = []string{}
	}
	return p, nil
}

// PreferencesPatch holds the fields to change; nil fields are kept.
type PreferencesPatch struct {
	Topics     []models.Category
	Sources    []string
	BiasFilter *string
}

func (r *Repo) UpdatePreferences(ctx context.Context, userID string, patch PreferencesPatch) (models.Preferences, error) {
	p, err := r.Preferences(ctx, userID)
	if err != nil {
		return models.Preferences{}, err
	}
	if patch.Topics != nil {
		p.Topics = patch.Topics
	}
	if patch.Sources != nil {
		p.Sources = patch.Sources
	}
	if patch.BiasFilter != nil {
		p.BiasFilter = *patch.BiasFilter
	}

	topicsJSON, _ := json.Marshal(p.Topics)
	sourcesJSON, _ := json.Marshal(p.Sources)

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, topics, sources, bias_filter, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			topics = excluded.topics,
			sources = excluded.sources,
			bias_filter = excluded.bias_filter,
			updated_at = excluded.updated_at
	`, userID, string(topicsJSON), string(sourcesJSON), p.BiasFilter, time.Now().UTC())
	if err != nil {
		return models.Preferences{}, fmt.Errorf("upsert preferences: %w", err)
	}
	return p, nil
}

// ToggleInteraction flips a like or save and reports whether it is now set.
func (r *Repo) ToggleInteraction(ctx context.Context, userID, articleID string, kind models.InteractionKind) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM user_interactions
		WHERE user_id = ? AND article_id = ? AND kind = ?
	`, userID, articleID, string(kind))
	if err != nil {
		return false, fmt.Errorf("toggle delete: %w", err)
	}

	active := false
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_interactions (user_id, article_id, kind, created_at)
			VALUES (?, ?, ?, ?)
		`, userID, articleID, string(kind), time.Now().UTC()); err != nil {
			return false, fmt.Errorf("toggle insert: %w", err)
		}
		active = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit toggle: %w", err)
	}
	return active, nil
}

// InteractionIDs lists the article ids the user has liked or saved, most
// recent first.
func (r *Repo) InteractionIDs(ctx context.Context, userID string, kind models.InteractionKind) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT article_id
		FROM user_interactions
		WHERE user_id = ? AND kind = ?
		ORDER BY created_at DESC
	`, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// RecordRead adds a history entry. Reading the same article again is a
// no-op.
func (r *Repo) RecordRead(ctx context.Context, userID, articleID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO reading_history (user_id, article_id, read_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, article_id) DO NOTHING
	`, userID, articleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record read: %w", err)
	}
	return nil
}

// History returns the most recent reads with their articles attached.
func (r *Repo) History(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT article_id, read_at
		FROM reading_history
		WHERE user_id = ?
		ORDER BY read_at DESC
		LIMIT ?
	`, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistoryEntry, 0, historyLimit)
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ArticleID, &e.ReadAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	if r.Articles == nil || len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i, e := range out {
		ids[i] = e.ArticleID
	}
	byID, err := r.Articles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if a, ok := byID[out[i].ArticleID]; ok {
			out[i].Article = &a
		}
	}
	return out, nil
}

func (r *Repo) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	var s models.UserStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM reading_history WHERE user_id = ?),
			(SELECT COUNT(*) FROM user_interactions WHERE user_id = ? AND kind = 'like'),
			(SELECT COUNT(*) FROM user_interactions WHERE user_id = ? AND kind = 'save')
	`, userID, userID, userID).Scan(&s.TotalRead, &s.TotalLiked, &s.TotalSaved)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}

package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"newslens/internal/articles"
	"newslens/pkg/database"
	"newslens/pkg/models"
)

func main() {
	var (
		articlesOut = flag.String("articles", "data/articles.csv", "output CSV path for articles")
		historyOut  = flag.String("history", "data/reading_history.csv", "output CSV path for reading history")
		category    = flag.String("category", "", "only export this category")
		biasLabel   = flag.String("bias", "", "only export this bias label")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate failed")
	}

	q := articles.ListQuery{Bias: *biasLabel}
	if *category != "" {
		c, ok := models.ParseCategory(*category)
		if !ok {
			logger.Fatal().Str("category", *category).Msg("unknown category")
		}
		q.Categories = []models.Category{c}
	}

	n, err := exportArticles(ctx, articles.NewRepo(db), q, *articlesOut)
	if err != nil {
		logger.Fatal().Err(err).Msg("export articles failed")
	}
	if err := exportHistory(ctx, db, *historyOut); err != nil {
		logger.Fatal().Err(err).Msg("export reading history failed")
	}

	logger.Info().Int("articles", n).Str("articles_csv", *articlesOut).Str("history_csv", *historyOut).Msg("export done")
}

const exportPage = 100

// exportArticles pages through the repository so the export follows the
// same filters and ordering as the feed.
func exportArticles(ctx context.Context, repo *articles.Repo, q articles.ListQuery, outPath string) (int, error) {
	w, closeFn, err := createCSV(outPath)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	if err := w.Write([]string{
		"id", "title", "source", "url", "category", "published_at",
		"bias_label", "bias_score", "bias_confidence", "bias_keywords",
	}); err != nil {
		return 0, err
	}

	total := 0
	q.Limit = exportPage
	for q.Offset = 0; ; q.Offset += exportPage {
		page, err := repo.List(ctx, q)
		if err != nil {
			return total, err
		}
		for _, a := range page {
			if err := w.Write([]string{
				a.ID,
				a.Title,
				a.Source,
				a.URL,
				string(a.Category),
				a.PublishedAt.UTC().Format(time.RFC3339),
				string(a.Bias.Label),
				strconv.FormatFloat(a.Bias.Score, 'f', 2, 64),
				strconv.FormatFloat(a.Bias.Confidence, 'f', 2, 64),
				strings.Join(a.Bias.Keywords, ";"),
			}); err != nil {
				return total, err
			}
		}
		total += len(page)
		if len(page) < exportPage {
			break
		}
	}

	w.Flush()
	return total, w.Error()
}

func exportHistory(ctx context.Context, db *sql.DB, outPath string) error {
	w, closeFn, err := createCSV(outPath)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := w.Write([]string{"user_id", "article_id", "read_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT user_id, article_id, read_at
        FROM reading_history
        ORDER BY read_at DESC
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID    string
			articleID string
			readAt    sql.NullTime
		)
		if err := rows.Scan(&userID, &articleID, &readAt); err != nil {
			return err
		}

		read := ""
		if readAt.Valid {
			read = readAt.Time.UTC().Format(time.RFC3339)
		}
		if err := w.Write([]string{userID, articleID, read}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func createCSV(outPath string) (*csv.Writer, func(), error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return csv.NewWriter(f), func() { _ = f.Close() }, nil
}

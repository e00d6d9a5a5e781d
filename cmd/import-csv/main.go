package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"newslens/internal/articles"
	"newslens/internal/headlines"
	"newslens/internal/ingest"
	"newslens/pkg/database"
	"newslens/pkg/models"
)

// import-csv loads headlines from a CSV file and runs them through the same
// classify-and-store path as a fetch cycle. Required columns are title and
// url; description, content, source, category and published_at are optional.
func main() {
	var (
		in       = flag.String("in", "data/articles.csv", "input CSV path")
		category = flag.String("category", "general", "category for rows without one")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	fallback, ok := models.ParseCategory(*category)
	if !ok {
		logger.Fatal().Str("category", *category).Msg("unknown category")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate failed")
	}

	f, err := os.Open(*in)
	if err != nil {
		logger.Fatal().Err(err).Msg("open csv")
	}
	defer f.Close()

	groups, rows, err := readArticles(f, fallback)
	if err != nil {
		logger.Fatal().Err(err).Msg("read csv")
	}

	o := ingest.New(ingest.Config{}, articles.NewRepo(db), logger)
	added := 0
	for cat, items := range groups {
		added += len(o.Ingest(ctx, cat, items))
	}

	logger.Info().Int("rows", rows).Int("added", added).Str("in", *in).Msg("import done")
}

// readArticles groups rows by their category column so each group keeps its
// category through assignment.
func readArticles(r io.Reader, fallback models.Category) (map[models.Category][]headlines.RawArticle, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, 0, err
	}
	if _, ok := header["title"]; !ok {
		return nil, 0, errors.New("missing title column")
	}
	if _, ok := header["url"]; !ok {
		return nil, 0, errors.New("missing url column")
	}

	out := make(map[models.Category][]headlines.RawArticle)
	rows := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rows, err
		}
		rows++

		cat := fallback
		if c, ok := models.ParseCategory(valueAt(header, row, "category")); ok {
			cat = c
		}
		out[cat] = append(out[cat], headlines.RawArticle{
			Title:       valueAt(header, row, "title"),
			Description: valueAt(header, row, "description"),
			Content:     valueAt(header, row, "content"),
			Source:      headlines.RawSource{Name: valueAt(header, row, "source")},
			URL:         valueAt(header, row, "url"),
			PublishedAt: valueAt(header, row, "published_at"),
		})
	}
	return out, rows, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"newslens/internal/articles"
	"newslens/internal/headlines"
	"newslens/pkg/database"
)

func main() {
	var (
		outPath = flag.String("out", "data/mirror.json", "output JSON path")
		limit   = flag.Int("limit", 100, "how many articles to export (max 100)")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate failed")
	}

	items, err := articles.NewRepo(db).List(ctx, articles.ListQuery{Limit: *limit})
	if err != nil {
		logger.Fatal().Err(err).Msg("list articles")
	}

	mirror := headlines.MirrorFromArticles(items)

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("mkdir failed")
	}
	b, err := json.MarshalIndent(mirror, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("marshal failed")
	}
	if err := os.WriteFile(*outPath, b, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write failed")
	}

	logger.Info().Int("articles", len(items)).Int("categories", len(mirror)).Str("out", *outPath).Msg("exported mirror")
}

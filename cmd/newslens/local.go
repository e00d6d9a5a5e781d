package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"newslens/internal/articles"
	"newslens/internal/headlines"
	"newslens/internal/ingest"
	"newslens/pkg/database"
	"newslens/pkg/models"
	"newslens/pkg/utils"
)

var (
	fetchCategories string
	fetchTarget     int
)

// openLocal loads config and the local database the way the server does.
func openLocal() (utils.Config, *sql.DB, zerolog.Logger, error) {
	cfg, err := utils.Load()
	if err != nil {
		return utils.Config{}, nil, zerolog.Nop(), err
	}
	logger := utils.NewLogger(cfg.Log, os.Stderr)

	db, err := database.Open(database.DefaultConfig())
	if err != nil {
		return utils.Config{}, nil, logger, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return utils.Config{}, nil, logger, fmt.Errorf("migrate: %w", err)
	}
	return cfg, db, logger, nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle against the local database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, db, logger, err := openLocal()
		if err != nil {
			return err
		}
		defer db.Close()

		cats := cfg.Fetch.CategoryValues()
		if fetchCategories != "" {
			cats = nil
			for _, name := range strings.Split(fetchCategories, ",") {
				c, ok := models.ParseCategory(name)
				if !ok {
					return fmt.Errorf("unknown category %q", strings.TrimSpace(name))
				}
				cats = append(cats, c)
			}
		}
		target := cfg.Fetch.TargetTotal
		if fetchTarget > 0 {
			target = fetchTarget
		}

		repo := articles.NewRepo(db)
		o := ingest.New(ingest.Config{
			Source:  headlines.FromConfig(cfg, logger),
			Country: cfg.NewsAPI.Country,
			Workers: cfg.Fetch.Workers,
		}, repo, logger)

		added := o.FetchAndIngest(cmd.Context(), cats, target)
		if jsonOutput {
			return printJSON(cmd, added)
		}

		rows := make([][]string, 0, len(added))
		for _, a := range added {
			rows = append(rows, []string{string(a.Category), string(a.Bias.Label), a.Source, a.Title})
		}
		if err := renderTable(cmd.OutOrStdout(), []string{"CATEGORY", "LABEL", "SOURCE", "TITLE"}, rows); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d new articles\n", len(added))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bias distribution, categories and sources in the local database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, _, err := openLocal()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		repo := articles.NewRepo(db)

		counts, err := repo.CountByBiasLabel(ctx)
		if err != nil {
			return err
		}
		total, err := repo.CountAll(ctx)
		if err != nil {
			return err
		}
		cats, err := repo.DistinctCategories(ctx)
		if err != nil {
			return err
		}
		srcs, err := repo.DistinctSources(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd, map[string]any{
				"total":      total,
				"bias":       counts,
				"categories": cats,
				"sources":    srcs,
			})
		}

		rows := make([][]string, 0, len(models.AllBiasLabels))
		for _, l := range models.AllBiasLabels {
			share := "0%"
			if total > 0 {
				share = strconv.Itoa(counts[l]*100/total) + "%"
			}
			rows = append(rows, []string{string(l), strconv.Itoa(counts[l]), share})
		}

		out := cmd.OutOrStdout()
		if err := renderTable(out, []string{"LABEL", "COUNT", "SHARE"}, rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "\ntotal:      %d\n", total)
		fmt.Fprintf(out, "categories: %s\n", strings.Join(cats, ", "))
		fmt.Fprintf(out, "sources:    %d\n", len(srcs))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCategories, "categories", "", "comma-separated categories (default from config)")
	fetchCmd.Flags().IntVar(&fetchTarget, "target", 0, "total articles to request (default from config)")
}

// Package ingest runs one fetch cycle: fetch every category in parallel,
// then assign, classify and persist each new item.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"newslens/internal/articles"
	"newslens/internal/bias"
	"newslens/internal/category"
	"newslens/internal/events"
	"newslens/internal/headlines"
	"newslens/pkg/models"
)

const defaultWorkers = 8

// Store is the persistence the orchestrator needs.
type Store interface {
	FindByURL(ctx context.Context, url string) (*models.Article, error)
	Insert(ctx context.Context, a *models.Article) error
}

// SeenCache is an optional fast path in front of Store.FindByURL.
type SeenCache interface {
	Seen(ctx context.Context, url string) (bool, error)
	Mark(ctx context.Context, url string) error
}

var (
	_ Store     = (*articles.Repo)(nil)
	_ SeenCache = (*articles.SeenCache)(nil)
)

type Config struct {
	// Source is nil when no upstream credential is configured.
	Source    headlines.Source
	Seen      SeenCache
	Publisher events.Publisher
	Lexicon   *bias.Lexicon
	Country   string
	Workers   int
}

type Orchestrator struct {
	source    headlines.Source
	store     Store
	seen      SeenCache
	publisher events.Publisher
	lexicon   *bias.Lexicon
	country   string
	workers   int
	logger    zerolog.Logger
	clean     *cleaner

	now   func() time.Time
	newID func() string
}

func New(cfg Config, store Store, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		source:    cfg.Source,
		store:     store,
		seen:      cfg.Seen,
		publisher: cfg.Publisher,
		lexicon:   cfg.Lexicon,
		country:   cfg.Country,
		workers:   cfg.Workers,
		logger:    logger.With().Str("component", "ingest").Logger(),
		clean:     newCleaner(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	if o.publisher == nil {
		o.publisher = events.Discard{}
	}
	if o.lexicon == nil {
		o.lexicon = bias.DefaultLexicon()
	}
	if o.workers <= 0 {
		o.workers = defaultWorkers
	}
	return o
}

type fetchResult struct {
	category models.Category
	items    []headlines.RawArticle
	err      error
}

type pending struct {
	raw      headlines.RawArticle
	category models.Category
}

// FetchAndIngest fetches up to targetTotal items spread over categories and
// returns the articles that were newly stored. It never fails as a whole:
// upstream and per-item errors are logged and skipped.
func (o *Orchestrator) FetchAndIngest(ctx context.Context, categories []models.Category, targetTotal int) []models.Article {
	if len(categories) == 0 {
		categories = []models.Category{models.CategoryGeneral}
	}

	if o.source == nil {
		o.logger.Warn().Msg("no news api key configured, returning sample articles")
		return SampleArticles(o.now())
	}

	perCategory := (targetTotal + len(categories) - 1) / len(categories)
	if perCategory < 1 {
		perCategory = 1
	}

	results := o.fetchAll(ctx, categories, perCategory)
	items := o.flatten(results)

	fetched := len(items)
	added := o.ingestAll(ctx, items)

	o.logger.Info().
		Int("categories", len(categories)).
		Int("fetched", fetched).
		Int("added", len(added)).
		Msg("fetch cycle done")

	if len(added) > 0 {
		if err := o.publisher.Publish(ctx, events.FetchCompleted(len(added))); err != nil {
			o.logger.Warn().Err(err).Msg("publish fetch completed")
		}
	}
	return added
}

// fetchAll issues one upstream call per category. Each task owns its slot;
// a failed call leaves an error in its slot and nothing else.
func (o *Orchestrator) fetchAll(ctx context.Context, categories []models.Category, perCategory int) []fetchResult {
	results := make([]fetchResult, len(categories))

	var g errgroup.Group
	for i, cat := range categories {
		g.Go(func() error {
			items, err := o.source.TopHeadlines(ctx, string(cat), perCategory, o.country)
			results[i] = fetchResult{category: cat, items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Ingest classifies and stores items that were obtained some other way,
// such as a bulk import. contextCategory plays the role of the fetch
// category. Like FetchAndIngest it returns only new articles.
func (o *Orchestrator) Ingest(ctx context.Context, contextCategory models.Category, items []headlines.RawArticle) []models.Article {
	pendings := o.flatten([]fetchResult{{category: contextCategory, items: items}})
	added := o.ingestAll(ctx, pendings)

	o.logger.Info().Int("items", len(items)).Int("added", len(added)).Msg("ingest done")
	return added
}

func (o *Orchestrator) flatten(results []fetchResult) []pending {
	var out []pending
	seen := make(map[string]struct{})

	for _, r := range results {
		if r.err != nil {
			o.logger.Warn().Err(r.err).Str("category", string(r.category)).Msg("category fetch failed")
			continue
		}
		for _, raw := range r.items {
			raw = o.clean.raw(raw)
			if raw.Title == "" || raw.URL == "" {
				o.logger.Debug().Str("category", string(r.category)).Str("url", raw.URL).Msg("dropping item without title or url")
				continue
			}
			if _, dup := seen[raw.URL]; dup {
				continue
			}
			seen[raw.URL] = struct{}{}
			out = append(out, pending{raw: raw, category: r.category})
		}
	}
	return out
}

func (o *Orchestrator) ingestAll(ctx context.Context, items []pending) []models.Article {
	slots := make([]*models.Article, len(items))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, p := range items {
		g.Go(func() error {
			a, err := o.ingestOne(ctx, p)
			if err != nil {
				o.logger.Error().Err(err).Str("url", p.raw.URL).Str("title", p.raw.Title).Msg("ingest article")
				return nil
			}
			slots[i] = a
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Article, 0, len(items))
	for _, a := range slots {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// ingestOne returns nil, nil when the URL is already stored.
func (o *Orchestrator) ingestOne(ctx context.Context, p pending) (*models.Article, error) {
	url := p.raw.URL

	if o.seen != nil {
		known, err := o.seen.Seen(ctx, url)
		if err != nil {
			o.logger.Warn().Err(err).Msg("seen cache lookup")
		} else if known {
			return nil, nil
		}
	}

	existing, err := o.store.FindByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		o.markSeen(ctx, url)
		return nil, nil
	}

	a := o.build(p)
	if err := o.store.Insert(ctx, &a); err != nil {
		if errors.Is(err, articles.ErrDuplicate) {
			o.markSeen(ctx, url)
			return nil, nil
		}
		return nil, err
	}

	o.markSeen(ctx, url)
	if err := o.publisher.Publish(ctx, events.ArticleIngested(a)); err != nil {
		o.logger.Warn().Err(err).Str("url", url).Msg("publish article")
	}
	return &a, nil
}

func (o *Orchestrator) build(p pending) models.Article {
	raw := p.raw
	now := o.now()

	r := bias.ClassifyArticle(o.lexicon, raw.Title, raw.Description, raw.Content)

	source := raw.Source.Name
	if source == "" {
		source = "Unknown"
	}

	return models.Article{
		ID:          o.newID(),
		Title:       raw.Title,
		Description: raw.Description,
		Content:     raw.Content,
		Source:      source,
		URL:         raw.URL,
		ImageURL:    raw.URLToImage,
		PublishedAt: parsePublished(raw.PublishedAt, now),
		Category:    category.Assign(raw.Title, raw.Description, string(p.category)),
		Bias:        r.Bias(),
		Terms:       r.Terms,
		CreatedAt:   now,
	}
}

func (o *Orchestrator) markSeen(ctx context.Context, url string) {
	if o.seen == nil {
		return
	}
	if err := o.seen.Mark(ctx, url); err != nil {
		o.logger.Warn().Err(err).Msg("seen cache mark")
	}
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
}

// parsePublished falls back to now for missing or unparseable timestamps.
func parsePublished(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/internal/articles"
	"newslens/internal/bias"
	"newslens/internal/events"
	"newslens/internal/headlines"
	"newslens/pkg/models"
)

type fakeSource struct {
	mu        sync.Mutex
	byCat     map[string][]headlines.RawArticle
	errs      map[string]error
	calls     []string
	pageSizes []int
}

var _ headlines.Source = (*fakeSource)(nil)

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) TopHeadlines(_ context.Context, category string, pageSize int, _ string) ([]headlines.RawArticle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, category)
	f.pageSizes = append(f.pageSizes, pageSize)
	f.mu.Unlock()

	if err := f.errs[category]; err != nil {
		return nil, err
	}
	return f.byCat[category], nil
}

type memStore struct {
	mu        sync.Mutex
	byURL     map[string]models.Article
	failURL   map[string]bool
	dupURL    map[string]bool
	findCalls map[string]int
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		byURL:     map[string]models.Article{},
		failURL:   map[string]bool{},
		dupURL:    map[string]bool{},
		findCalls: map[string]int{},
	}
}

func (m *memStore) FindByURL(_ context.Context, url string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls[url]++
	if a, ok := m.byURL[url]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, a *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failURL[a.URL] {
		return errors.New("disk full")
	}
	if m.dupURL[a.URL] {
		return articles.ErrDuplicate
	}
	if _, ok := m.byURL[a.URL]; ok {
		return articles.ErrDuplicate
	}
	m.byURL[a.URL] = *a
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byURL)
}

type memSeen struct {
	mu   sync.Mutex
	urls map[string]bool
}

var _ SeenCache = (*memSeen)(nil)

func (s *memSeen) Seen(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urls[url], nil
}

func (s *memSeen) Mark(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls[url] = true
	return nil
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.got {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(src headlines.Source, store Store, seen SeenCache, pub events.Publisher) *Orchestrator {
	cfg := Config{Source: src, Publisher: pub, Lexicon: bias.DefaultLexicon(), Country: "us", Workers: 4}
	if seen != nil {
		cfg.Seen = seen
	}
	o := New(cfg, store, zerolog.Nop())
	o.now = func() time.Time { return fixedNow }
	n := 0
	var mu sync.Mutex
	o.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "id-" + string(rune('a'+n-1))
	}
	return o
}

func raw(title, url string) headlines.RawArticle {
	return headlines.RawArticle{Title: title, URL: url, Source: headlines.RawSource{Name: "Wire"}, PublishedAt: "2024-05-01T10:00:00Z"}
}

func urls(as []models.Article) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.URL
	}
	return out
}

func TestFetchAndIngest_PartialFailure(t *testing.T) {
	src := &fakeSource{
		byCat: map[string][]headlines.RawArticle{
			"technology": {raw("Chip news", "https://x/1"), raw("Cloud news", "https://x/2")},
			"science":    {raw("Mars rover", "https://x/3")},
		},
		errs: map[string]error{"sports": errors.New("upstream 500")},
	}
	store := newMemStore()
	o := newTestOrchestrator(src, store, nil, nil)

	added := o.FetchAndIngest(context.Background(),
		[]models.Category{models.CategoryTechnology, models.CategorySports, models.CategoryScience}, 9)

	assert.ElementsMatch(t, []string{"https://x/1", "https://x/2", "https://x/3"}, urls(added))
	assert.ElementsMatch(t, []string{"technology", "sports", "science"}, src.calls)
	assert.Equal(t, []int{3, 3, 3}, src.pageSizes)
	assert.Equal(t, 3, store.len())
}

func TestFetchAndIngest_PerCategoryRoundsUp(t *testing.T) {
	src := &fakeSource{}
	o := newTestOrchestrator(src, newMemStore(), nil, nil)

	o.FetchAndIngest(context.Background(),
		[]models.Category{models.CategoryHealth, models.CategoryBusiness, models.CategoryScience}, 10)

	assert.Equal(t, []int{4, 4, 4}, src.pageSizes)
}

func TestFetchAndIngest_EmptyCategoriesMeansGeneral(t *testing.T) {
	src := &fakeSource{}
	o := newTestOrchestrator(src, newMemStore(), nil, nil)

	o.FetchAndIngest(context.Background(), nil, 5)

	assert.Equal(t, []string{"general"}, src.calls)
	assert.Equal(t, []int{5}, src.pageSizes)
}

func TestFetchAndIngest_Idempotent(t *testing.T) {
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"politics": {raw("Senate vote", "https://x/a"), raw("House vote", "https://x/b")},
	}}
	store := newMemStore()
	o := newTestOrchestrator(src, store, nil, nil)
	cats := []models.Category{models.CategoryPolitics}

	first := o.FetchAndIngest(context.Background(), cats, 10)
	second := o.FetchAndIngest(context.Background(), cats, 10)

	assert.Len(t, first, 2)
	assert.Empty(t, second)
	assert.Equal(t, 2, store.len())
}

func TestFetchAndIngest_NoSourceReturnsSamples(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(nil, store, nil, nil)

	got := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryTechnology}, 30)

	require.Len(t, got, 2)
	assert.Equal(t, "Sample: Climate Bill Passes Senate", got[0].Title)
	assert.Equal(t, models.BiasNeutral, got[0].Bias.Label)
	assert.Equal(t, models.BiasCenter, got[1].Bias.Label)
	assert.Equal(t, 0, store.len(), "samples are not persisted")
}

func TestFetchAndIngest_PersistenceFailureIsIsolated(t *testing.T) {
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"business": {raw("A", "https://x/ok1"), raw("B", "https://x/bad"), raw("C", "https://x/ok2")},
	}}
	store := newMemStore()
	store.failURL["https://x/bad"] = true
	o := newTestOrchestrator(src, store, nil, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryBusiness}, 3)

	assert.Equal(t, []string{"https://x/ok1", "https://x/ok2"}, urls(added))
}

func TestFetchAndIngest_LostInsertRaceIsSkip(t *testing.T) {
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"health": {raw("A", "https://x/race"), raw("B", "https://x/fine")},
	}}
	store := newMemStore()
	store.dupURL["https://x/race"] = true
	o := newTestOrchestrator(src, store, nil, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryHealth}, 2)

	assert.Equal(t, []string{"https://x/fine"}, urls(added))
}

func TestFetchAndIngest_CategoryTrust(t *testing.T) {
	nba := raw("Lakers win the NBA finals", "https://x/nba")
	nba2 := raw("Lakers clinch NBA title", "https://x/nba2")
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"technology": {nba},
		"general":    {nba2},
	}}
	o := newTestOrchestrator(src, newMemStore(), nil, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryTechnology, models.CategoryGeneral}, 2)
	require.Len(t, added, 2)

	byURL := map[string]models.Category{}
	for _, a := range added {
		byURL[a.URL] = a.Category
	}
	assert.Equal(t, models.CategoryTechnology, byURL["https://x/nba"])
	assert.Equal(t, models.CategorySports, byURL["https://x/nba2"])
}

func TestFetchAndIngest_CleansHTMLBeforeClassifying(t *testing.T) {
	item := raw("Budget debate", "https://x/html")
	item.Description = `<p>The <b>wealth tax</b> and <a href="https://ads.example.com">green new deal</a> plan</p>`
	item.Content = "Lawmakers argued for hours about equity [+2310 chars]"
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{"politics": {item}}}
	o := newTestOrchestrator(src, newMemStore(), nil, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryPolitics}, 1)
	require.Len(t, added, 1)

	a := added[0]
	assert.NotContains(t, a.Description, "<")
	assert.NotContains(t, a.Description, "ads.example.com")
	assert.Contains(t, a.Description, "wealth tax")
	assert.Equal(t, "Lawmakers argued for hours about equity", a.Content)
	assert.Equal(t, []string{"wealth tax", "green new deal", "equity"}, a.Bias.Keywords)
	assert.Equal(t, models.BiasLeft, a.Bias.Label)
}

func TestFetchAndIngest_FieldDefaults(t *testing.T) {
	noSource := headlines.RawArticle{Title: "Quiet day", URL: "https://x/q", PublishedAt: "yesterday-ish"}
	noTitle := headlines.RawArticle{URL: "https://x/untitled"}
	noURL := headlines.RawArticle{Title: "Lost"}
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{"general": {noSource, noTitle, noURL}}}
	o := newTestOrchestrator(src, newMemStore(), nil, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryGeneral}, 3)
	require.Len(t, added, 1)

	a := added[0]
	assert.Equal(t, "Unknown", a.Source)
	assert.Equal(t, fixedNow, a.PublishedAt)
	assert.Equal(t, fixedNow, a.CreatedAt)
	assert.Equal(t, models.CategoryGeneral, a.Category)
	assert.NotEmpty(t, a.ID)
}

func TestFetchAndIngest_DuplicateURLAcrossCategories(t *testing.T) {
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"technology": {raw("Same story", "https://x/same")},
		"business":   {raw("Same story", "https://x/same")},
	}}
	store := newMemStore()
	o := newTestOrchestrator(src, store, nil, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryTechnology, models.CategoryBusiness}, 2)

	require.Len(t, added, 1)
	assert.Equal(t, models.CategoryTechnology, added[0].Category, "first category in request order wins")
}

func TestFetchAndIngest_SeenCacheSkipsLookup(t *testing.T) {
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"science": {raw("Old", "https://x/old"), raw("New", "https://x/new")},
	}}
	store := newMemStore()
	seen := &memSeen{urls: map[string]bool{"https://x/old": true}}
	o := newTestOrchestrator(src, store, seen, nil)

	added := o.FetchAndIngest(context.Background(), []models.Category{models.CategoryScience}, 2)

	assert.Equal(t, []string{"https://x/new"}, urls(added))
	assert.Zero(t, store.findCalls["https://x/old"])
	assert.Equal(t, 1, store.findCalls["https://x/new"])
	assert.True(t, seen.urls["https://x/new"], "new urls are marked")
}

func TestFetchAndIngest_PublishesEvents(t *testing.T) {
	src := &fakeSource{byCat: map[string][]headlines.RawArticle{
		"sports": {raw("A", "https://x/1"), raw("B", "https://x/2")},
	}}
	pub := &recorder{}
	o := newTestOrchestrator(src, newMemStore(), nil, pub)

	o.FetchAndIngest(context.Background(), []models.Category{models.CategorySports}, 2)
	assert.Equal(t, 2, pub.count(events.TypeArticleIngested))
	assert.Equal(t, 1, pub.count(events.TypeFetchCompleted))

	o.FetchAndIngest(context.Background(), []models.Category{models.CategorySports}, 2)
	assert.Equal(t, 2, pub.count(events.TypeArticleIngested), "no events for duplicates")
	assert.Equal(t, 1, pub.count(events.TypeFetchCompleted))
}

func TestParsePublished(t *testing.T) {
	assert.Equal(t, fixedNow, parsePublished("", fixedNow))
	assert.Equal(t, fixedNow, parsePublished("not a date", fixedNow))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), parsePublished("2024-05-01T10:00:00Z", fixedNow))
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), parsePublished("Wed, 01 May 2024 10:00:00 +0200", fixedNow))
}

func TestIngest_DirectItems(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(nil, store, nil, nil)

	items := []headlines.RawArticle{
		raw("NASA probe reaches Jupiter", "https://x/j"),
		raw("NASA probe reaches Jupiter", "https://x/j"),
		raw("", "https://x/untitled"),
	}
	added := o.Ingest(context.Background(), models.CategoryGeneral, items)

	require.Len(t, added, 1)
	assert.Equal(t, models.CategoryScience, added[0].Category)
	assert.Equal(t, 1, store.len(), "works without an upstream source")
}

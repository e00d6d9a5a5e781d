package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/internal/articles"
	"newslens/internal/auth"
	"newslens/internal/events"
	"newslens/pkg/database"
	"newslens/pkg/models"
)

const testUser = "u1"

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "users.db"), BusyTimeoutMS: 1000})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	ctx := context.Background()
	require.NoError(t, auth.NewRepo(db).CreateUser(ctx, auth.User{ID: testUser, Username: "reader", Email: "r@example.com", PasswordHash: "x"}))

	ar := articles.NewRepo(db)
	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, ar.Insert(ctx, &models.Article{
			ID:          id,
			Title:       "Story " + id,
			URL:         "https://x/" + id,
			Source:      "AP",
			PublishedAt: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
			Category:    models.CategoryGeneral,
			Bias:        models.Bias{Label: models.BiasCenter},
		}))
	}
	return NewRepo(db, ar)
}

func TestRepo_PreferencesDefaultAndPatch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p, err := r.Preferences(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), p)

	left := "left"
	p, err = r.UpdatePreferences(ctx, testUser, PreferencesPatch{BiasFilter: &left})
	require.NoError(t, err)
	assert.Equal(t, "left", p.BiasFilter)
	assert.Equal(t, models.DefaultPreferences().Topics, p.Topics, "unpatched fields are kept")

	p, err = r.UpdatePreferences(ctx, testUser, PreferencesPatch{Topics: []models.Category{models.CategoryScience}, Sources: []string{}})
	require.NoError(t, err)

	stored, err := r.Preferences(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, p, stored)
	assert.Equal(t, []models.Category{models.CategoryScience}, stored.Topics)
	assert.Equal(t, "left", stored.BiasFilter)
	assert.Empty(t, stored.Sources)
}

func TestRepo_ToggleInteraction(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	active, err := r.ToggleInteraction(ctx, testUser, "a1", models.InteractionLike)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = r.ToggleInteraction(ctx, testUser, "a1", models.InteractionSave)
	require.NoError(t, err)
	assert.True(t, active, "like and save are independent")

	active, err = r.ToggleInteraction(ctx, testUser, "a1", models.InteractionLike)
	require.NoError(t, err)
	assert.False(t, active)

	liked, err := r.InteractionIDs(ctx, testUser, models.InteractionLike)
	require.NoError(t, err)
	assert.Empty(t, liked)

	saved, err := r.InteractionIDs(ctx, testUser, models.InteractionSave)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, saved)
}

func TestRepo_HistoryAndStats(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.RecordRead(ctx, testUser, "a1"))
	require.NoError(t, r.RecordRead(ctx, testUser, "a2"))
	require.NoError(t, r.RecordRead(ctx, testUser, "a1"), "re-reading is a no-op")
	_, err := r.ToggleInteraction(ctx, testUser, "a3", models.InteractionLike)
	require.NoError(t, err)

	h, err := r.History(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, h, 2)
	for _, e := range h {
		require.NotNil(t, e.Article, e.ArticleID)
		assert.Equal(t, "Story "+e.ArticleID, e.Article.Title)
	}

	s, err := r.Stats(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{TotalRead: 2, TotalLiked: 1, TotalSaved: 0}, s)
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (p *recorder) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pub := &recorder{}
	h := NewHandler(newTestRepo(t), pub, zerolog.Nop())

	r := gin.New()
	g := r.Group("/api/user", func(c *gin.Context) {
		c.Set(auth.CtxClaimsKey, &auth.Claims{UserID: testUser})
		c.Next()
	})
	h.RegisterRoutes(g)
	return r, pub
}

func send(t *testing.T, r http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHandler_UpdatePreferences(t *testing.T) {
	r, _ := newTestRouter(t)

	code, out := send(t, r, http.MethodPut, "/api/user/preferences", gin.H{"topics": []string{"Sports"}, "biasFilter": "RIGHT"})
	require.Equal(t, http.StatusOK, code, out)

	data := out["data"].(map[string]any)
	prefs := data["preferences"].(map[string]any)
	assert.Equal(t, []any{"sports"}, prefs["topics"])
	assert.Equal(t, "right", prefs["biasFilter"])
	assert.Equal(t, []any{}, data["likedArticles"])

	code, out = send(t, r, http.MethodPut, "/api/user/preferences", gin.H{"topics": []string{"weather"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown topic: weather", out["message"])

	code, _ = send(t, r, http.MethodPut, "/api/user/preferences", gin.H{"biasFilter": "extreme"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_ToggleInteraction(t *testing.T) {
	r, pub := newTestRouter(t)

	code, out := send(t, r, http.MethodPost, "/api/user/toggle-interaction", gin.H{"articleId": " a2 ", "interactionType": "save"})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, true, out["active"])
	assert.Equal(t, []any{"a2"}, out["savedArticles"])

	code, out = send(t, r, http.MethodPost, "/api/user/toggle-interaction", gin.H{"articleId": "a2", "interactionType": "save"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["active"])

	require.Len(t, pub.got, 2)
	assert.Equal(t, events.TypeInteractionToggled, pub.got[0].Type)
	assert.Equal(t, "a2", pub.got[0].ArticleID)

	code, _ = send(t, r, http.MethodPost, "/api/user/toggle-interaction", gin.H{"articleId": "a2", "interactionType": "share"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = send(t, r, http.MethodPost, "/api/user/toggle-interaction", gin.H{"articleId": "missing", "interactionType": "like"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_TrackReadAndStats(t *testing.T) {
	r, _ := newTestRouter(t)

	code, _ := send(t, r, http.MethodPost, "/api/user/interaction", gin.H{"articleId": "a1", "interaction": "like"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = send(t, r, http.MethodPost, "/api/user/interaction", gin.H{"articleId": "a1", "interaction": "read"})
	require.Equal(t, http.StatusOK, code)

	code, out := send(t, r, http.MethodGet, "/api/user/history", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["data"], 1)

	code, out = send(t, r, http.MethodGet, "/api/user/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"totalRead": 1.0, "totalLiked": 0.0, "totalSaved": 0.0}, out["data"])
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/internal/articles"
	"newslens/internal/auth"
	"newslens/internal/events"
	"newslens/internal/ingest"
	"newslens/internal/scheduler"
	"newslens/internal/users"
	"newslens/pkg/database"
)

func newTestApp(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "api.db")
	db, err := database.Open(database.Config{Path: path, BusyTimeoutMS: 1000})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	hub := events.NewHub()
	articleRepo := articles.NewRepo(db)
	userRepo := users.NewRepo(db, articleRepo)
	authRepo := auth.NewRepo(db)
	tokens := auth.TokenService{Secret: []byte("test-secret"), Issuer: "newslens", Duration: time.Hour}

	orchestrator := ingest.New(ingest.Config{Publisher: hub}, articleRepo, logger)
	sched := scheduler.New(scheduler.Config{}, orchestrator, articleRepo, logger)

	return (&app{
		db:          db,
		dbPath:      path,
		hub:         hub,
		publishers:  events.Fanout{hub},
		articles:    articleRepo,
		users:       userRepo,
		authRepo:    authRepo,
		tokens:      tokens,
		refresher:   orchestrator,
		sched:       sched,
		requireAuth: auth.AuthMiddleware(tokens, authRepo),
		logger:      logger,
	}).routes()
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestRoutes_HealthAndReady(t *testing.T) {
	r := newTestApp(t)

	code, out := do(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])

	code, out = do(t, r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", out["status"])
	sched, ok := out["scheduler"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, sched["isRunning"])
}

func TestRoutes_PublicNews(t *testing.T) {
	r := newTestApp(t)

	code, out := do(t, r, http.MethodGet, "/api/news/bias-stats", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, out["data"], 4)

	code, out = do(t, r, http.MethodGet, "/api/scheduler/status", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])
}

func TestRoutes_UserRoutesNeedToken(t *testing.T) {
	r := newTestApp(t)

	code, _ := do(t, r, http.MethodGet, "/api/users/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, out := do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "reader", "email": "reader@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, code, out["message"])
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)

	code, out = do(t, r, http.MethodGet, "/api/users/stats", token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])
}

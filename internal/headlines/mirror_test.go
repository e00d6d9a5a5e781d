package headlines

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/pkg/models"
)

func newMirrorServer(t *testing.T, load func() (Mirror, error)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/top-headlines", MirrorHandler(load))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestMirror_ServesNewsAPIShape(t *testing.T) {
	published := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	m := MirrorFromArticles([]models.Article{
		{Title: "A", URL: "https://x/a", Source: "AP", Category: models.CategoryScience, PublishedAt: published},
		{Title: "B", URL: "https://x/b", Source: "AP", Category: models.CategoryScience, PublishedAt: published},
		{Title: "C", URL: "https://x/c", Source: "AP", Category: models.CategorySports, PublishedAt: published},
	})
	srv := newMirrorServer(t, func() (Mirror, error) { return m, nil })

	client := NewNewsAPI(srv.URL, "any", time.Second, 100)

	got, err := client.TopHeadlines(context.Background(), "science", 1, "us")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, "AP", got[0].Source.Name)
	assert.Equal(t, "2024-03-01T09:30:00Z", got[0].PublishedAt)

	got, err = client.TopHeadlines(context.Background(), "health", 10, "us")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMirror_RequiresKeyLikeUpstream(t *testing.T) {
	srv := newMirrorServer(t, func() (Mirror, error) { return Mirror{}, nil })

	resp, err := srv.Client().Get(srv.URL + "/top-headlines?category=science")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)

	var body newsAPIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "apiKeyMissing", body.Code)
}

func TestMirror_LoadErrorsSurface(t *testing.T) {
	srv := newMirrorServer(t, func() (Mirror, error) { return nil, errors.New("disk gone") })

	_, err := NewNewsAPI(srv.URL, "k", time.Second, 100).TopHeadlines(context.Background(), "science", 5, "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "disk gone", apiErr.Message)
}

func TestLoadMirror(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"science":[{"title":"T","url":"https://x/t"}]}`), 0o600))
	m, err := LoadMirror(good)
	require.NoError(t, err)
	assert.Len(t, m["science"], 1)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"weather":[]}`), 0o600))
	_, err = LoadMirror(bad)
	assert.Error(t, err)

	_, err = LoadMirror(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

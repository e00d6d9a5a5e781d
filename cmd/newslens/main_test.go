package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		jsonOutput = false
		classifyTitle, classifyDescription, classifyContent = "", "", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "", "classify", "Conservative", "lawmakers", "push", "tax", "cuts")
	require.NoError(t, err)
	assert.Contains(t, out, "label:      right")
	assert.Contains(t, out, "keywords:   conservative, tax cuts")
}

func TestClassifyCommand_StdinJSON(t *testing.T) {
	out, err := run(t, "wealth tax and green new deal", "classify", "--json")
	require.NoError(t, err)

	var got struct {
		Label    string   `json:"label"`
		Verdict  string   `json:"verdict"`
		Keywords []string `json:"keywords"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "left", got.Label)
	assert.Equal(t, []string{"wealth tax", "green new deal"}, got.Keywords)
}

func TestCompareCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"source": "Left Daily", "title": "Why we need a wealth tax and the green new deal"},
		{"source": "Right Times", "title": "Tax cuts and border security for small government"}
	]`), 0o600))

	out, err := run(t, "", "compare", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "Left Daily   left"), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "Right Times  right"), lines[3])
}

func TestDoJSON_SurfacesEnvelopeMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid token"}`))
	}))
	t.Cleanup(srv.Close)

	prev := apiBaseURL
	apiBaseURL = srv.URL
	t.Cleanup(func() { apiBaseURL = prev })

	err := doJSON(t.Context(), http.MethodGet, "/api/auth/me", "tok", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	_, err := readToken(path)
	assert.Error(t, err)

	require.NoError(t, saveToken(path, "abc"))
	tok, err := readToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, clearToken(path))
	require.NoError(t, clearToken(path), "clearing twice is fine")
	assert.Error(t, saveToken(path, ""))
}

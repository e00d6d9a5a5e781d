package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newslens/pkg/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type apiEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		CurrentPage   int `json:"currentPage"`
		TotalPages    int `json:"totalPages"`
		TotalArticles int `json:"totalArticles"`
	} `json:"pagination"`
}

var (
	loginEmail    string
	loginPassword string
	regUsername   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if loginEmail == "" || loginPassword == "" {
			return errors.New("--email and --password are required")
		}
		var resp authResponse
		payload := map[string]string{"email": loginEmail, "password": loginPassword}
		if err := doJSON(cmd.Context(), http.MethodPost, "/api/auth/login", "", payload, &resp); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged in")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and store the token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if regUsername == "" || loginEmail == "" || loginPassword == "" {
			return errors.New("--username, --email and --password are required")
		}
		var resp authResponse
		payload := map[string]string{"username": regUsername, "email": loginEmail, "password": loginPassword}
		if err := doJSON(cmd.Context(), http.MethodPost, "/api/auth/register", "", payload, &resp); err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "registered and logged in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored token on the server and remove it locally",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if token, err := readToken(tokenPath); err == nil {
			// the local token is removed even if the server is unreachable
			_ = doJSON(cmd.Context(), http.MethodPost, "/api/auth/logout", token, nil, nil)
		}
		if err := clearToken(tokenPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var (
	feedCategory string
	feedBias     string
	feedSource   string
	feedPage     int
	feedLimit    int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show your personalized feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		token, err := readToken(tokenPath)
		if err != nil {
			return fmt.Errorf("not logged in: %w", err)
		}

		q := url.Values{}
		q.Set("page", strconv.Itoa(feedPage))
		q.Set("limit", strconv.Itoa(feedLimit))
		if feedCategory != "" {
			q.Set("category", feedCategory)
		}
		if feedBias != "" {
			q.Set("bias", feedBias)
		}
		if feedSource != "" {
			q.Set("source", feedSource)
		}

		var env apiEnvelope
		if err := doJSON(cmd.Context(), http.MethodGet, "/api/news/feed?"+q.Encode(), token, nil, &env); err != nil {
			return err
		}
		var items []models.Article
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return fmt.Errorf("decode feed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, items)
		}

		rows := make([][]string, 0, len(items))
		for _, a := range items {
			rows = append(rows, []string{a.PublishedAt.Local().Format("Jan 02 15:04"), string(a.Bias.Label), a.Source, a.Title})
		}
		out := cmd.OutOrStdout()
		if err := renderTable(out, []string{"PUBLISHED", "LABEL", "SOURCE", "TITLE"}, rows); err != nil {
			return err
		}
		if p := env.Pagination; p != nil {
			fmt.Fprintf(out, "\npage %d of %d (%d articles)\n", p.CurrentPage, p.TotalPages, p.TotalArticles)
		}
		return nil
	},
}

var schedulerCmd = &cobra.Command{
	Use:       "scheduler <status|start|stop|fetch-now>",
	Short:     "Inspect or control the server's fetch scheduler",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"status", "start", "stop", "fetch-now"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := args[0]
		method, token := http.MethodPost, ""
		if action == "status" {
			method = http.MethodGet
		} else {
			var err error
			if token, err = readToken(tokenPath); err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}
		}

		var env apiEnvelope
		if err := doJSON(cmd.Context(), method, "/api/scheduler/"+action, token, nil, &env); err != nil {
			return err
		}
		if env.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), env.Message)
		}
		var data any
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &data)
			return printJSON(cmd, data)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "email address")
		c.Flags().StringVar(&loginPassword, "password", "", "password")
	}
	registerCmd.Flags().StringVar(&regUsername, "username", "", "username")

	feedCmd.Flags().StringVar(&feedCategory, "category", "", "comma-separated categories (default: your topics)")
	feedCmd.Flags().StringVar(&feedBias, "bias", "", "left, center, right, neutral or all")
	feedCmd.Flags().StringVar(&feedSource, "source", "", "source name substring")
	feedCmd.Flags().IntVar(&feedPage, "page", 1, "page number")
	feedCmd.Flags().IntVar(&feedLimit, "limit", 20, "page size")
}

func doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	endpoint := strings.TrimRight(apiBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var env apiEnvelope
		if json.Unmarshal(data, &env) == nil && env.Message != "" {
			return fmt.Errorf("%s %s: %s", method, path, env.Message)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.newslens-token.json"
	}
	return filepath.Join(home, ".newslens", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	if td.Token == "" {
		return "", errors.New("empty token")
	}
	return td.Token, nil
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

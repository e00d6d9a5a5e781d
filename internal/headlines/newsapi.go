package headlines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const newsAPIBase = "https://newsapi.org/v2"

// APIError is a non-success reply from NewsAPI.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("newsapi: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("newsapi: status %d: %s", e.StatusCode, e.Message)
}

// ErrNoAPIKey is returned when a request is attempted without a key.
var ErrNoAPIKey = errors.New("newsapi: no api key configured")

// NewsAPI fetches from the NewsAPI top-headlines endpoint.
type NewsAPI struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

var _ Source = (*NewsAPI)(nil)

// NewNewsAPI builds a client that allows rps requests per second across all
// goroutines sharing it.
func NewNewsAPI(baseURL, apiKey string, timeout time.Duration, rps float64) *NewsAPI {
	if baseURL == "" {
		baseURL = newsAPIBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 2
	}
	return &NewsAPI{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (s *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status       string       `json:"status"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []RawArticle `json:"articles"`
}

func (s *NewsAPI) TopHeadlines(ctx context.Context, category string, pageSize int, country string) ([]RawArticle, error) {
	if s.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	u, err := url.Parse(s.BaseURL + "/top-headlines")
	if err != nil {
		return nil, fmt.Errorf("newsapi: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("category", category)
	q.Set("pageSize", strconv.Itoa(pageSize))
	if country != "" {
		q.Set("country", country)
	}
	q.Set("apiKey", s.APIKey)
	u.RawQuery = q.Encode()

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("newsapi: rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("newsapi: read body: %w", err)
	}

	var out newsAPIResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK || out.Status == "error" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: out.Code, Message: out.Message}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("newsapi: decode: %w", decodeErr)
	}

	return out.Articles, nil
}

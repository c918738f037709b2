// Package websearch provides the web_search capability backed by the
// Tavily API. Tavily is used as a raw data source: the AI answer is
// disabled so the pipeline stages do the thinking.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

const defaultBaseURL = "https://api.tavily.com"

// TavilySource searches the web via the Tavily API.
type TavilySource struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxResults int
}

// Option configures a TavilySource.
type Option func(*TavilySource)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(t *TavilySource) {
		t.apiKey = key
	}
}

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(url string) Option {
	return func(t *TavilySource) {
		t.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxResults sets the maximum search results to return.
func WithMaxResults(max int) Option {
	return func(t *TavilySource) {
		t.maxResults = max
	}
}

// NewTavilySource creates a Tavily-backed web search capability.
func NewTavilySource(opts ...Option) *TavilySource {
	t := &TavilySource{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the capability identifier.
func (t *TavilySource) Name() string {
	return "web_search"
}

// Available returns true if the API key is configured.
func (t *TavilySource) Available() bool {
	return t.apiKey != ""
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Invoke searches the web for information matching the query. Results are
// returned in the backend's relevance order.
func (t *TavilySource) Invoke(ctx context.Context, query string) ([]capability.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, capability.InvalidInput("empty search query")
	}
	if !t.Available() {
		return nil, capability.Unavailable(t.Name(), fmt.Errorf("Tavily API key not configured"))
	}

	payload := tavilyRequest{
		Query:         query,
		SearchDepth:   "advanced",
		IncludeAnswer: false, // raw snippets only, no provider summary
		MaxResults:    t.maxResults,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, capability.Unavailable(t.Name(), fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, capability.Unavailable(t.Name(), fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &capability.Error{Kind: capability.KindUnavailable, Capability: t.Name(), Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &capability.Error{
			Kind:       capability.KindUnavailable,
			Capability: t.Name(),
			Status:     resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var tavilyResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, capability.Unavailable(t.Name(), fmt.Errorf("failed to decode response: %w", err))
	}

	results := make([]capability.Result, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, capability.Result{
			Content:   fmt.Sprintf("%s\n%s", r.Title, r.Content),
			Reference: r.URL,
			Score:     r.Score,
			Timestamp: time.Now().UTC(),
			Metadata: map[string]string{
				"title":  r.Title,
				"source": "tavily",
			},
		})
	}

	return results, nil
}

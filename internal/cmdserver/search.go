package cmdserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// SearchConfig configures the DuckDuckGo search backend.
type SearchConfig struct {
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
}

// DefaultSearchConfig returns sensible defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		BaseURL:    "https://html.duckduckgo.com/html/",
		MaxResults: 5,
		Timeout:    10 * time.Second,
		UserAgent:  "Mozilla/5.0 (compatible; assistant-search/1.0)",
	}
}

// Searcher defines the interface for web search backends.
type Searcher interface {
	// Search performs a web search and returns a textual summary of the
	// top results.
	Search(ctx context.Context, query string) (string, error)
}

// SearchResult is a single parsed search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// DuckDuckGoSearcher queries the DuckDuckGo HTML endpoint and scrapes
// the result list. No API key is required.
type DuckDuckGoSearcher struct {
	config SearchConfig
	client *http.Client
	logger *zap.Logger
}

// NewDuckDuckGoSearcher creates a searcher with the given configuration.
func NewDuckDuckGoSearcher(config SearchConfig, logger *zap.Logger) *DuckDuckGoSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultSearchConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.MaxResults <= 0 {
		config.MaxResults = def.MaxResults
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	return &DuckDuckGoSearcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "duckduckgo_searcher")),
	}
}

// Search posts the query to the HTML endpoint and returns the top
// results as "title: snippet (url)" lines.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string) (string, error) {
	start := time.Now()

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	results, err := parseSearchResults(resp.Body, s.config.MaxResults)
	if err != nil {
		return "", fmt.Errorf("parse search results: %w", err)
	}

	s.logger.Info("search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))

	if len(results) == 0 {
		return "No good search results were found", nil
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", r.Title, r.Snippet, r.URL))
	}
	return strings.Join(lines, "\n"), nil
}

// parseSearchResults walks the DuckDuckGo HTML result page. Titles and
// target URLs come from the result__a anchors, snippets from the
// result__snippet elements of the same result block.
func parseSearchResults(body io.Reader, limit int) ([]SearchResult, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") {
			if r, ok := extractResult(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(block *html.Node) (SearchResult, bool) {
	var r SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				r.Title = strings.TrimSpace(nodeText(n))
				r.URL = resolveResultURL(attrVal(n, "href"))
				return
			case hasClass(n, "result__snippet"):
				r.Snippet = strings.TrimSpace(nodeText(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(block)
	return r, r.Title != ""
}

// resolveResultURL unwraps the redirect links DuckDuckGo emits
// (//duckduckgo.com/l/?uddg=<encoded target>).
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

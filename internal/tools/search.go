package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher is satisfied by langchaingo search tools such as duckduckgo.Tool.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

const maxSearchResults = 10

// SearchTool runs web searches and, given a url instead of a query, reads
// the page through a PageFetcher.
type SearchTool struct {
	client  Searcher
	fetcher *PageFetcher
}

func NewSearchTool() (*SearchTool, error) {
	ddg, err := duckduckgo.New(maxSearchResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, fmt.Errorf("creating duckduckgo client: %w", err)
	}
	return NewSearchToolWith(ddg, NewPageFetcher()), nil
}

// NewSearchToolWith accepts a nil fetcher, in which case url lookups fail.
func NewSearchToolWith(client Searcher, fetcher *PageFetcher) *SearchTool {
	return &SearchTool{client: client, fetcher: fetcher}
}

func (s *SearchTool) Name() string { return "web_search" }

func (s *SearchTool) Description() string {
	return "Search the web for provider documentation, CVEs or security advisories. Pass url instead of query to read a result page as plain text."
}

func (s *SearchTool) Parameters() map[string]any {
	return objectSchema(nil,
		str("query", "What to search for"),
		str("url", "A page to fetch instead of searching"),
	)
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		URL   string `json:"url"`
	}
	if err := decodeArgs(s.Name(), input, &args); err != nil {
		return "", err
	}

	switch {
	case strings.TrimSpace(args.URL) != "":
		if s.fetcher == nil {
			return "", fmt.Errorf("page fetching is not available")
		}
		return s.fetcher.Fetch(ctx, strings.TrimSpace(args.URL))
	case strings.TrimSpace(args.Query) == "":
		return "Error: query or url is required", nil
	}

	res, err := s.client.Call(ctx, strings.TrimSpace(args.Query))
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}

package tools

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxPageChars = 50000
	maxPageBytes = 5 << 20
)

// PageFetcher downloads an HTML page and reduces it to readable, sanitized
// text for the model.
type PageFetcher struct {
	UserAgent string
	Client    *http.Client
	policy    *bluemonday.Policy
}

func NewPageFetcher() *PageFetcher {
	return &PageFetcher{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		Client:    &http.Client{Timeout: 30 * time.Second},
		policy:    bluemonday.StrictPolicy(),
	}
}

func (p *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", u.Host, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); mt != "text/html" && mt != "application/xhtml+xml" {
			return "", fmt.Errorf("fetching %s: unsupported content type %s", u.Host, mt)
		}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return "", fmt.Errorf("extracting article: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", article.Excerpt)
	}
	b.WriteString("\n-- CONTENT --\n")
	b.WriteString(truncateRunes(p.sanitize(article.TextContent), maxPageChars))
	return b.String(), nil
}

func (p *PageFetcher) sanitize(s string) string {
	if p.policy == nil {
		p.policy = bluemonday.StrictPolicy()
	}
	return strings.TrimSpace(p.policy.Sanitize(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n... (content truncated) ..."
}

package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 20 << 20

// HTTPCrawler fetches static HTML with a plain GET. It has no script engine,
// so the settle delay does not apply.
type HTTPCrawler struct {
	client *http.Client
	cfg    Config
}

func NewHTTPCrawler(cfg Config) *HTTPCrawler {
	return &HTTPCrawler{
		client: &http.Client{Timeout: cfg.PageTimeout},
		cfg:    cfg,
	}
}

func (c *HTTPCrawler) Crawl(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return failed(pageURL, 0, fmt.Errorf("creating request: %w", err)), nil
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "crawl fetch failed", "url", pageURL, "error", err)
		return failed(pageURL, 0, fmt.Errorf("fetching %s: %w", pageURL, err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failed(pageURL, resp.StatusCode, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return failed(pageURL, resp.StatusCode, fmt.Errorf("reading response body: %w", err)), nil
	}

	res, err := render(pageURL, string(body), c.cfg)
	if err != nil {
		return failed(pageURL, resp.StatusCode, err), nil
	}
	res.StatusCode = resp.StatusCode
	return res, nil
}

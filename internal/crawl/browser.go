package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"
)

// BrowserCrawler renders the page in headless Chrome, waits SettleDelay for
// scripts to populate the DOM, then reduces the rendered HTML.
type BrowserCrawler struct {
	cfg Config
}

func NewBrowserCrawler(cfg Config) *BrowserCrawler {
	return &BrowserCrawler{cfg: cfg}
}

func (c *BrowserCrawler) Crawl(ctx context.Context, pageURL string) (*Result, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(c.cfg.UserAgent),
	)
	if c.cfg.TextOnly {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, c.cfg.PageTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		slog.WarnContext(ctx, "browser crawl failed", "url", pageURL, "error", err)
		return failed(pageURL, 0, fmt.Errorf("rendering %s: %w", pageURL, err)), nil
	}

	res, err := render(pageURL, html, c.cfg)
	if err != nil {
		return failed(pageURL, 0, err), nil
	}
	return res, nil
}

// New selects the crawler implementation by name.
func New(kind string, cfg Config) Crawler {
	if kind == "browser" {
		return NewBrowserCrawler(cfg)
	}
	return NewHTTPCrawler(cfg)
}

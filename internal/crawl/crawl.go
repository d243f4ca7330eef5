// Package crawl fetches a single web page and reduces it to markdown.
// Fetch failures are reported on the Result, not as errors, so callers can
// treat an unreachable page as "no content".
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const DefaultUserAgent = "KontextProcessor/1.0"

type Config struct {
	PageTimeout         time.Duration
	SettleDelay         time.Duration
	TextOnly            bool
	FollowExternalLinks bool
	UserAgent           string
}

func DefaultConfig() Config {
	return Config{
		PageTimeout: 30 * time.Second,
		SettleDelay: 2 * time.Second,
		TextOnly:    true,
		UserAgent:   DefaultUserAgent,
	}
}

type Result struct {
	URL          string
	Success      bool
	StatusCode   int
	Title        string
	Markdown     string
	Links        []string
	ErrorMessage string
}

// Crawler fetches one page. Implementations return an error only for
// programming faults; an unreachable page is a Result with Success false.
type Crawler interface {
	Crawl(ctx context.Context, pageURL string) (*Result, error)
}

func failed(pageURL string, status int, err error) *Result {
	return &Result{URL: pageURL, StatusCode: status, ErrorMessage: err.Error()}
}

var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer", "header",
	"iframe", "form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".ads", ".advertisement",
}

var mediaSelectors = []string{
	"img", "picture", "figure", "figcaption",
	"video", "audio", "svg", "canvas",
}

// render turns a fetched HTML document into a successful Result.
func render(pageURL, html string, cfg Config) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := collectLinks(doc, pageURL, cfg.FollowExternalLinks)

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	if cfg.TextOnly {
		for _, sel := range mediaSelectors {
			doc.Find(sel).Remove()
		}
	}

	var content *goquery.Selection
	for _, tag := range []string{"main", "article", "body"} {
		if sel := doc.Find(tag); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		return &Result{URL: pageURL, Success: true, Title: title, Links: links}, nil
	}

	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return nil, fmt.Errorf("serializing content: %w", err)
	}
	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return nil, fmt.Errorf("converting HTML to markdown: %w", err)
	}

	return &Result{
		URL:      pageURL,
		Success:  true,
		Title:    title,
		Markdown: strings.TrimSpace(markdown),
		Links:    links,
	}, nil
}

func collectLinks(doc *goquery.Document, pageURL string, external bool) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		if !external && !sameDomain(abs, base) {
			return
		}
		if s := abs.String(); !seen[s] {
			seen[s] = true
			links = append(links, s)
		}
	})
	return links
}

func sameDomain(u, base *url.URL) bool {
	return strings.EqualFold(strings.TrimPrefix(u.Hostname(), "www."), strings.TrimPrefix(base.Hostname(), "www."))
}

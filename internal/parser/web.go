package parser

import (
	"context"
	"log/slog"

	"kontext/apps/processor/internal/crawl"
	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/metadata"
	"kontext/apps/processor/internal/text"
)

// WebParser chunks the markdown of a single crawled page. An unreachable or
// empty page is not an error: it yields no chunks.
type WebParser struct {
	crawler  crawl.Crawler
	chunkers text.ChunkerFactory
}

func NewWebParser(crawler crawl.Crawler, chunkers text.ChunkerFactory) *WebParser {
	return &WebParser{crawler: crawler, chunkers: chunkers}
}

func (p *WebParser) Parse(ctx context.Context, req *message.ProcessRequest, chunkSize, overlap int) ([]message.Chunk, error) {
	slog.InfoContext(ctx, "processing web page", "url", req.WebURL, "content_id", req.ContentID)

	chunker, err := p.chunkers(chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	res, err := p.crawler.Crawl(ctx, req.WebURL)
	if err != nil {
		slog.WarnContext(ctx, "crawl failed", "url", req.WebURL, "error", err)
		return []message.Chunk{}, nil
	}
	if !res.Success {
		slog.WarnContext(ctx, "crawl reported failure", "url", req.WebURL, "status", res.StatusCode, "error", res.ErrorMessage)
		return []message.Chunk{}, nil
	}

	content := text.CleanMarkdownNoise(res.Markdown)
	if content == "" {
		slog.WarnContext(ctx, "no content extracted from page", "url", req.WebURL)
		return []message.Chunk{}, nil
	}

	requestLayer := metadata.WebRequest(req)
	payload := metadata.WebPayload(req.WebURL, res.Title, res.Markdown, res.Success, res.Links)

	chunks := []message.Chunk{}
	for _, c := range chunker.Chunk(content) {
		chunks = append(chunks, message.Chunk{
			Content:  c.Text,
			Metadata: metadata.Assemble(requestLayer, metadata.Chunk(len(chunks), c), payload),
		})
	}

	slog.InfoContext(ctx, "web page chunked", "url", req.WebURL, "chunks", len(chunks))
	return chunks, nil
}

package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kontext/apps/processor/internal/extract"
	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/metadata"
	"kontext/apps/processor/internal/pipeline"
	"kontext/apps/processor/internal/text"
)

// BlobDownloader fetches source bytes from the blob store.
type BlobDownloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// ExtractorResolver picks the extractor for a file.
type ExtractorResolver interface {
	ForFile(mimeType, fileName string) (extract.Extractor, error)
}

type DocumentParser struct {
	blobs      BlobDownloader
	extractors ExtractorResolver
	chunkers   text.ChunkerFactory
	scratchDir string
}

func NewDocumentParser(blobs BlobDownloader, extractors ExtractorResolver, chunkers text.ChunkerFactory, scratchDir string) *DocumentParser {
	return &DocumentParser{
		blobs:      blobs,
		extractors: extractors,
		chunkers:   chunkers,
		scratchDir: scratchDir,
	}
}

func (p *DocumentParser) Parse(ctx context.Context, req *message.ProcessRequest, chunkSize, overlap int) ([]message.Chunk, error) {
	slog.InfoContext(ctx, "processing document", "file_name", req.FileName, "s3_key", req.S3Key, "content_id", req.ContentID)

	content, err := p.blobs.Download(ctx, req.S3Bucket, req.S3Key)
	if err != nil {
		return nil, pipeline.Classify(err, pipeline.CodeS3Download, pipeline.StepS3Download,
			fmt.Sprintf("Failed to download file %s", req.S3Key))
	}

	chunks, err := p.chunkDocument(ctx, req, content, chunkSize, overlap)
	if err != nil {
		return nil, pipeline.Classify(err, pipeline.CodeDocumentProcessing, pipeline.StepDocumentProcessing,
			fmt.Sprintf("Failed to parse document %s", req.FileName))
	}

	slog.InfoContext(ctx, "document chunked", "file_name", req.FileName, "chunks", len(chunks))
	return chunks, nil
}

func (p *DocumentParser) chunkDocument(ctx context.Context, req *message.ProcessRequest, content []byte, chunkSize, overlap int) ([]message.Chunk, error) {
	extractor, err := p.extractors.ForFile(req.MimeType, req.FileName)
	if err != nil {
		return nil, err
	}
	chunker, err := p.chunkers(chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	path, err := p.stage(req.FileName, content)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to remove scratch file", "path", path, "error", err)
		}
	}()

	doc, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	requestLayer := metadata.DocumentRequest(req)
	sourceLayer := metadata.Source(doc.Info, req.FileName)

	chunks := []message.Chunk{}
	for _, page := range doc.Pages {
		pageText := strings.TrimSpace(page.Text)
		if pageText == "" {
			continue
		}
		pageLayer := metadata.Page(page)
		for _, c := range chunker.Chunk(pageText) {
			chunks = append(chunks, message.Chunk{
				Content:  c.Text,
				Metadata: metadata.Assemble(requestLayer, sourceLayer, pageLayer, metadata.Chunk(len(chunks), c)),
			})
		}
	}
	return chunks, nil
}

// stage writes the bytes to a scratch file whose suffix matches the original
// name so extension-sniffing extractors still work.
func (p *DocumentParser) stage(fileName string, content []byte) (string, error) {
	suffix := filepath.Ext(fileName)
	if suffix == "" {
		suffix = ".bin"
	}

	f, err := os.CreateTemp(p.scratchDir, "doc-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close scratch file: %w", err)
	}
	return f.Name(), nil
}

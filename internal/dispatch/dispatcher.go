package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/parser"
	"kontext/apps/processor/internal/pipeline"
)

// Registry binds each content type to exactly one parser.
type Registry map[message.ContentType]parser.Parser

// DefaultRegistry binds documents and web pages to real parsers and the
// media types to not-implemented arms.
func DefaultRegistry(document, web parser.Parser) Registry {
	return Registry{
		message.ContentDocument: document,
		message.ContentWeb:      web,
		message.ContentImage:    parser.NotImplemented{Label: "Image"},
		message.ContentVideo:    parser.NotImplemented{Label: "Video"},
		message.ContentAudio:    parser.NotImplemented{Label: "Audio"},
	}
}

type Dispatcher struct {
	parsers   Registry
	chunkSize int
	overlap   int
}

func New(parsers Registry, chunkSize, overlap int) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = parser.DefaultChunkSize
	}
	if overlap < 0 {
		overlap = parser.DefaultOverlap
	}
	return &Dispatcher{parsers: parsers, chunkSize: chunkSize, overlap: overlap}
}

// Route runs the parser registered for the request's content type. Parser
// failures that are not already classified become HANDLER_ERROR, including
// panics.
func (d *Dispatcher) Route(ctx context.Context, req *message.ProcessRequest) (chunks []message.Chunk, err error) {
	p, ok := d.parsers[req.ContentType]
	if !ok {
		return nil, pipeline.UnsupportedContentType(fmt.Sprintf("Unsupported content type: %s", req.ContentType))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "parser panicked", "content_type", req.ContentType, "content_id", req.ContentID, "panic", r)
			chunks, err = nil, pipeline.Recovered(r, pipeline.CodeHandler, pipeline.StepRequestProcessing, "Unexpected error processing request")
		}
	}()

	slog.InfoContext(ctx, "routing request", "content_type", req.ContentType, "content_id", req.ContentID)

	chunks, err = p.Parse(ctx, req, d.chunkSize, d.overlap)
	if err != nil {
		return nil, pipeline.Classify(err, pipeline.CodeHandler, pipeline.StepRequestProcessing, "Unexpected error processing request")
	}
	return chunks, nil
}

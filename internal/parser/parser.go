package parser

import (
	"context"
	"fmt"

	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/pipeline"
)

const (
	DefaultChunkSize = 512
	DefaultOverlap   = 128
)

// Parser turns one request into its ordered chunk sequence.
type Parser interface {
	Parse(ctx context.Context, req *message.ProcessRequest, chunkSize, overlap int) ([]message.Chunk, error)
}

// NotImplemented is bound to content types that are accepted on the wire
// but have no processing yet.
type NotImplemented struct {
	Label string
}

func (p NotImplemented) Parse(ctx context.Context, req *message.ProcessRequest, chunkSize, overlap int) ([]message.Chunk, error) {
	return nil, pipeline.NotImplemented(fmt.Sprintf("%s processing not yet implemented", p.Label))
}

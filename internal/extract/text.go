package extract

import (
	"context"
	"fmt"

	"github.com/lu4p/cat"
)

// TextExtractor reads .docx, .odt, .rtf and plain text files. These formats
// carry no reliable pagination, so the whole file is one page.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	return &Document{
		Info:  Info{TotalPages: 1},
		Pages: []Page{{Number: 1, Text: content}},
	}, nil
}

package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Info is document-level metadata. Empty fields are unknown.
type Info struct {
	Title            string
	Author           string
	Subject          string
	Creator          string
	Producer         string
	CreationDate     string
	ModificationDate string
	TotalPages       int
}

// Page is one extraction unit. Number is 1-based.
type Page struct {
	Number     int
	Text       string
	Width      float64
	Height     float64
	Rotation   int
	ImageCount int
}

type Document struct {
	Info  Info
	Pages []Page
}

// Extractor reads a staged file into pages of text.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeODT  = "application/vnd.oasis.opendocument.text"
	mimeRTF  = "application/rtf"
)

// Registry picks an extractor by MIME type, falling back to the file
// extension when the MIME type is missing or generic.
type Registry struct {
	pdf  Extractor
	text Extractor
}

func NewRegistry(pdf, text Extractor) *Registry {
	return &Registry{pdf: pdf, text: text}
}

// NewDefaultRegistry wires the PDF and office-document extractors.
func NewDefaultRegistry(pageTimeout time.Duration) *Registry {
	return NewRegistry(NewPDFExtractor(pageTimeout), NewTextExtractor())
}

func (r *Registry) ForFile(mimeType, fileName string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case mimePDF:
		return r.pdf, nil
	case mimeDOCX, mimeODT, mimeRTF, "text/rtf", "text/plain", "text/markdown":
		return r.text, nil
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return r.pdf, nil
	case ".docx", ".odt", ".rtf", ".txt", ".md":
		return r.text, nil
	}
	return nil, fmt.Errorf("%w: mime %q, file %q", ErrUnsupportedFormat, mimeType, fileName)
}

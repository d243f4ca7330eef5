package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dslipak/pdf"
)

var ErrPageTimeout = errors.New("page text extraction timed out")

// PDFExtractor reads page text, page geometry and the document info
// dictionary with github.com/dslipak/pdf.
type PDFExtractor struct {
	pageTimeout time.Duration
}

func NewPDFExtractor(pageTimeout time.Duration) *PDFExtractor {
	if pageTimeout <= 0 {
		pageTimeout = 10 * time.Second
	}
	return &PDFExtractor{pageTimeout: pageTimeout}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (doc *Document, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}

	r, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := r.NumPage()
	doc = &Document{Info: readInfo(r.Trailer().Key("Info"))}
	doc.Info.TotalPages = numPages

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			slog.DebugContext(ctx, "skipping null pdf page", "page", i)
			continue
		}

		content, err := e.pageText(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		width, height := pageSize(page)
		rotation := int(inherited(page.V, "Rotate").Int64())
		if rotation%180 != 0 {
			width, height = height, width
		}

		doc.Pages = append(doc.Pages, Page{
			Number:     i,
			Text:       content,
			Width:      width,
			Height:     height,
			Rotation:   rotation,
			ImageCount: countImages(page.Resources()),
		})
	}
	return doc, nil
}

func (e *PDFExtractor) pageText(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- result{err: fmt.Errorf("text extraction panicked: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resCh <- result{content, err}
	}()

	timer := time.NewTimer(e.pageTimeout)
	defer timer.Stop()

	select {
	case r := <-resCh:
		return r.content, r.err
	case <-timer.C:
		return "", ErrPageTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func readInfo(info pdf.Value) Info {
	if info.IsNull() {
		return Info{}
	}
	return Info{
		Title:            info.Key("Title").Text(),
		Author:           info.Key("Author").Text(),
		Subject:          info.Key("Subject").Text(),
		Creator:          info.Key("Creator").Text(),
		Producer:         info.Key("Producer").Text(),
		CreationDate:     info.Key("CreationDate").Text(),
		ModificationDate: info.Key("ModDate").Text(),
	}
}

// inherited looks a page attribute up the page tree.
func inherited(v pdf.Value, key string) pdf.Value {
	for !v.IsNull() {
		if attr := v.Key(key); !attr.IsNull() {
			return attr
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func pageSize(page pdf.Page) (float64, float64) {
	box := inherited(page.V, "CropBox")
	if box.Len() != 4 {
		box = inherited(page.V, "MediaBox")
	}
	if box.Len() != 4 {
		return 0, 0
	}
	width := box.Index(2).Float64() - box.Index(0).Float64()
	height := box.Index(3).Float64() - box.Index(1).Float64()
	if width < 0 {
		width = -width
	}
	if height < 0 {
		height = -height
	}
	return width, height
}

func countImages(resources pdf.Value) int {
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return 0
	}
	n := 0
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			n++
		}
	}
	return n
}

// Package metadata builds the layered metadata attached to every chunk.
// Layers are applied request, source, unit, chunk; the request layer owns
// its keys and later layers cannot replace them.
package metadata

import (
	"log/slog"
	"maps"
	"unicode/utf8"

	"kontext/apps/processor/internal/extract"
	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/text"
)

const (
	KeyKnowledgeID         = "knowledge_id"
	KeyProjectID           = "project_id"
	KeyUserID              = "user_id"
	KeyFileName            = "file_name"
	KeyName                = "name"
	KeyMimeType            = "mime_type"
	KeyFileSize            = "file_size"
	KeyS3Bucket            = "s3_bucket"
	KeyS3Key               = "s3_key"
	KeyURL                 = "url"
	KeyProcessingTimestamp = "processing_timestamp"

	KeyPageNumber     = "page_number"
	KeyPageWidth      = "page_width"
	KeyPageHeight     = "page_height"
	KeyPageRotation   = "page_rotation"
	KeyPageImageCount = "page_image_count"

	KeyChunkIndex      = "chunk_index"
	KeyTokenCount      = "token_count"
	KeyChunkStartIndex = "chunk_start_index"
	KeyChunkEndIndex   = "chunk_end_index"

	KeyAdditionalPayload = "additional_payload"
)

// Layer is one set of metadata fields.
type Layer map[string]any

// Assemble merges layers into a fresh map. Keys from the request layer are
// never replaced; among the remaining layers the later one wins.
func Assemble(request Layer, layers ...Layer) map[string]any {
	out := make(map[string]any, len(request)+8)
	maps.Copy(out, request)

	for _, layer := range layers {
		for k, v := range layer {
			if _, owned := request[k]; owned {
				slog.Debug("metadata key owned by request layer, dropping", "key", k)
				continue
			}
			out[k] = v
		}
	}
	return out
}

// DocumentRequest is the request layer for document sources. The processing
// timestamp is the request's own, so re-processing yields identical metadata.
func DocumentRequest(req *message.ProcessRequest) Layer {
	return Layer{
		KeyKnowledgeID:         req.ContentID,
		KeyProjectID:           req.ProjectID,
		KeyUserID:              req.UserID,
		KeyFileName:            req.FileName,
		KeyMimeType:            req.MimeType,
		KeyFileSize:            req.FileSize,
		KeyS3Bucket:            req.S3Bucket,
		KeyS3Key:               req.S3Key,
		KeyProcessingTimestamp: req.Timestamp,
	}
}

// WebRequest is the request layer for web sources.
func WebRequest(req *message.ProcessRequest) Layer {
	return Layer{
		KeyKnowledgeID:         req.ContentID,
		KeyProcessingTimestamp: req.Timestamp,
		KeyName:                req.Name,
		KeyMimeType:            req.MimeType,
		KeyURL:                 req.WebURL,
	}
}

// Source is the document layer. Only non-empty fields are emitted, each
// prefixed with doc_.
func Source(info extract.Info, source string) Layer {
	l := Layer{}
	put := func(key, value string) {
		if value != "" {
			l["doc_"+key] = value
		}
	}
	if info.TotalPages > 0 {
		l["doc_total_pages"] = info.TotalPages
	}
	put("title", info.Title)
	put("author", info.Author)
	put("subject", info.Subject)
	put("creator", info.Creator)
	put("producer", info.Producer)
	put("creation_date", info.CreationDate)
	put("modification_date", info.ModificationDate)
	put("source", source)
	return l
}

// Page is the unit layer for one page.
func Page(p extract.Page) Layer {
	l := Layer{
		KeyPageNumber:   p.Number,
		KeyPageWidth:    p.Width,
		KeyPageHeight:   p.Height,
		KeyPageRotation: p.Rotation,
	}
	if p.ImageCount > 0 {
		l[KeyPageImageCount] = p.ImageCount
	}
	return l
}

// Chunk is the chunk layer; index is global across the source.
func Chunk(index int, c text.Chunk) Layer {
	return Layer{
		KeyChunkIndex:      index,
		KeyTokenCount:      c.TokenCount,
		KeyChunkStartIndex: c.StartIndex,
		KeyChunkEndIndex:   c.EndIndex,
	}
}

// WebPayload is nested under additional_payload rather than flattened.
func WebPayload(url, title, markdown string, success bool, links []string) Layer {
	if links == nil {
		links = []string{}
	}
	return Layer{
		KeyAdditionalPayload: map[string]any{
			"url":            url,
			"web_title":      title,
			"content_length": utf8.RuneCountInString(markdown),
			"crawl_success":  success,
			"links":          links,
			"link_count":     len(links),
		},
	}
}

package materialize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/pipeline"
)

const contentTypeJSON = "application/json"

// BlobUploader writes one object in a single put.
type BlobUploader interface {
	Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// Locator addresses a materialized chunk sequence.
type Locator struct {
	Bucket string
	Key    string
}

// Key is the object key for a content id. Re-processing the same content
// overwrites the same object.
func Key(contentID string) string {
	return fmt.Sprintf("processed/%s-chunks.json", contentID)
}

type Materializer struct {
	blobs  BlobUploader
	bucket string
}

func New(blobs BlobUploader, bucket string) *Materializer {
	return &Materializer{blobs: blobs, bucket: bucket}
}

func (m *Materializer) Materialize(ctx context.Context, chunks []message.Chunk, contentID string) (Locator, error) {
	if chunks == nil {
		chunks = []message.Chunk{}
	}
	loc := Locator{Bucket: m.bucket, Key: Key(contentID)}

	body, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return Locator{}, pipeline.Upload(fmt.Sprintf("Failed to serialize chunks for %s", contentID), err)
	}

	if err := m.blobs.Upload(ctx, loc.Bucket, loc.Key, body, contentTypeJSON); err != nil {
		return Locator{}, pipeline.Classify(err, pipeline.CodeS3Upload, pipeline.StepS3Upload,
			fmt.Sprintf("Failed to upload chunks to %s", loc.Key))
	}

	slog.InfoContext(ctx, "chunks materialized", "bucket", loc.Bucket, "key", loc.Key, "chunks", len(chunks))
	return loc, nil
}

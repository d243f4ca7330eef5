package message

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventProcessRequest EventType = "content.process.request"
	EventProcessSuccess EventType = "content.process.success"
	EventProcessFailed  EventType = "content.process.failed"
)

type ContentType string

const (
	ContentDocument ContentType = "document"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentWeb      ContentType = "web"
)

// Known reports whether t is one of the content types defined above.
func (t ContentType) Known() bool {
	switch t {
	case ContentDocument, ContentImage, ContentVideo, ContentAudio, ContentWeb:
		return true
	}
	return false
}

// SuccessMessage is the fixed human-readable text on every success event.
const SuccessMessage = "Document processed successfully"

// ProcessRequest is the inbound request. ContentID is threaded unchanged
// through every message derived from it.
type ProcessRequest struct {
	EventID     string      `json:"eventId"`
	EventType   EventType   `json:"eventType"`
	Timestamp   string      `json:"timestamp"`
	ContentID   string      `json:"contentId"`
	ContentType ContentType `json:"contentType"`
	FileName    string      `json:"fileName,omitempty"`
	S3Key       string      `json:"s3Key,omitempty"`
	S3Bucket    string      `json:"s3Bucket,omitempty"`
	WebURL      string      `json:"webUrl,omitempty"`
	MimeType    string      `json:"mimeType,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	ProjectID   string      `json:"projectId,omitempty"`
	UserID      string      `json:"userId,omitempty"`
	Name        string      `json:"name,omitempty"`
	RetryCount  int         `json:"retryCount,omitempty"`
}

type ProcessSuccess struct {
	EventID          string      `json:"eventId"`
	EventType        EventType   `json:"eventType"`
	Timestamp        string      `json:"timestamp"`
	ContentID        string      `json:"contentId"`
	ContentType      ContentType `json:"contentType"`
	Message          string      `json:"message"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	ChunkCount       int         `json:"chunkCount"`
	S3BucketName     string      `json:"s3BucketName"`
	S3Key            string      `json:"s3Key"`
}

type ProcessFailure struct {
	EventID      string      `json:"eventId"`
	EventType    EventType   `json:"eventType"`
	Timestamp    string      `json:"timestamp"`
	ContentID    string      `json:"contentId"`
	ContentType  ContentType `json:"contentType"`
	ErrorMessage string      `json:"errorMessage"`
	ErrorCode    string      `json:"errorCode"`
	StackTrace   string      `json:"stackTrace,omitempty"`
	RetryCount   int         `json:"retryCount"`
	FailedStep   string      `json:"failedStep"`
}

// Chunk is one unit of the materialized result.
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Now is the timestamp format used on every event.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewEventID() string {
	return uuid.New().String()
}

func NewSuccess(req *ProcessRequest, processingTime time.Duration, chunkCount int, bucket, key string) *ProcessSuccess {
	return &ProcessSuccess{
		EventID:          NewEventID(),
		EventType:        EventProcessSuccess,
		Timestamp:        Now(),
		ContentID:        req.ContentID,
		ContentType:      req.ContentType,
		Message:          SuccessMessage,
		ProcessingTimeMs: processingTime.Milliseconds(),
		ChunkCount:       chunkCount,
		S3BucketName:     bucket,
		S3Key:            key,
	}
}

// Identity is the best-known identity of a request, used to address
// failure messages.
type Identity struct {
	ContentID   string
	ContentType ContentType
	RetryCount  int
}

func (r *ProcessRequest) Identity() Identity {
	return Identity{ContentID: r.ContentID, ContentType: r.ContentType, RetryCount: r.RetryCount}
}

func NewFailure(id Identity, errorCode, failedStep, errorMessage, stackTrace string) *ProcessFailure {
	return &ProcessFailure{
		EventID:      NewEventID(),
		EventType:    EventProcessFailed,
		Timestamp:    Now(),
		ContentID:    id.ContentID,
		ContentType:  id.ContentType,
		ErrorMessage: errorMessage,
		ErrorCode:    errorCode,
		StackTrace:   stackTrace,
		RetryCount:   id.RetryCount,
		FailedStep:   failedStep,
	}
}

package worker

import (
	"context"

	"kontext/apps/processor/internal/materialize"
	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/pipeline"
)

type Router interface {
	Route(ctx context.Context, req *message.ProcessRequest) ([]message.Chunk, error)
}

type Materializer interface {
	Materialize(ctx context.Context, chunks []message.Chunk, contentID string) (materialize.Locator, error)
}

// ResponseSender emits one serialized event on the response channel.
type ResponseSender interface {
	Send(ctx context.Context, body []byte) (string, error)
}

// FailureRecorder keeps failed records for operator replay.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, body []byte, failure *message.ProcessFailure) error
}

// StatusTracker publishes the latest processing status of a content id.
// It is informational and never consulted to skip work.
type StatusTracker interface {
	SetStatus(ctx context.Context, contentID, status string) error
}

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the result of one record.
type Outcome struct {
	MessageID   string
	ContentID   string
	ContentType message.ContentType
	Name        string
	Status      OutcomeStatus
	ChunkCount  int
	ErrorCode   pipeline.Code
	FailedStep  pipeline.Step
	Err         error
}

// BatchResult holds one outcome per input record, in input order.
type BatchResult struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
}

// FailedIDs lists the message ids of failed records for partial-batch
// acknowledgment.
func (r BatchResult) FailedIDs() []string {
	ids := []string{}
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			ids = append(ids, o.MessageID)
		}
	}
	return ids
}

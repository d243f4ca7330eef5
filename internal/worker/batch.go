package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kontext/apps/processor/internal/logger"
	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/metrics"
	"kontext/apps/processor/internal/middleware"
	"kontext/apps/processor/internal/pipeline"
	"kontext/apps/processor/internal/queue"
)

// BatchProcessor runs every record of a batch through decode, route,
// materialize and respond. Records never affect each other: a failing or
// panicking record yields a failed outcome and its siblings carry on.
type BatchProcessor struct {
	router       Router
	materializer Materializer
	sender       ResponseSender
	recorder     FailureRecorder
	tracker      StatusTracker
	concurrency  int
}

type Option func(*BatchProcessor)

// WithConcurrency processes up to n records of a batch at once.
func WithConcurrency(n int) Option {
	return func(p *BatchProcessor) { p.concurrency = n }
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(p *BatchProcessor) { p.recorder = r }
}

func WithStatusTracker(t StatusTracker) Option {
	return func(p *BatchProcessor) { p.tracker = t }
}

func NewBatchProcessor(r Router, m Materializer, s ResponseSender, opts ...Option) *BatchProcessor {
	p := &BatchProcessor{router: r, materializer: m, sender: s, concurrency: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *BatchProcessor) ProcessBatch(ctx context.Context, records []queue.Record) BatchResult {
	metrics.ObserveBatch(len(records))
	outcomes := make([]Outcome, len(records))

	if p.concurrency <= 1 || len(records) <= 1 {
		for i, rec := range records {
			outcomes[i] = p.processRecord(ctx, rec)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i, rec := range records {
			g.Go(func() error {
				outcomes[i] = p.processRecord(ctx, rec)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := BatchResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Status == OutcomeSuccess {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	slog.InfoContext(ctx, "batch processed", "records", len(records), "succeeded", result.Succeeded, "failed", result.Failed)
	return result
}

func (p *BatchProcessor) processRecord(ctx context.Context, rec queue.Record) (out Outcome) {
	ctx = middleware.WithCorrelationID(ctx, rec.ID)
	start := time.Now()

	var req *message.ProcessRequest
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "record processing panicked", "message_id", rec.ID, "panic", r)
			out = p.fail(ctx, rec, req, pipeline.Recovered(r, pipeline.CodeUnexpected, pipeline.StepMessageProcessing, "Unexpected error"))
		}
		metrics.CaptureRecord(string(out.ContentType), string(out.Status), time.Since(start))
	}()

	decoded, err := message.DecodeRequest(rec.Body)
	if err != nil {
		return p.fail(ctx, rec, nil, classifyDecode(err))
	}
	req = decoded

	slog.InfoContext(ctx, "processing record", "message_id", rec.ID, "content_id", req.ContentID, "content_type", req.ContentType)
	p.track(ctx, req.ContentID, StatusProcessing)

	handleStart := time.Now()
	chunks, err := p.router.Route(ctx, req)
	handleTime := time.Since(handleStart)
	if err != nil {
		return p.fail(ctx, rec, req, pipeline.Classify(err, pipeline.CodeUnexpected, pipeline.StepMessageProcessing, "Unexpected error"))
	}

	loc, err := p.materializer.Materialize(ctx, chunks, req.ContentID)
	if err != nil {
		return p.fail(ctx, rec, req, pipeline.Classify(err, pipeline.CodeUnexpected, pipeline.StepMessageProcessing, "Unexpected error"))
	}

	success := message.NewSuccess(req, handleTime, len(chunks), loc.Bucket, loc.Key)
	body, err := json.Marshal(success)
	if err != nil {
		return p.fail(ctx, rec, req, pipeline.Unexpected(fmt.Sprintf("Unexpected error: %v", err), err))
	}
	if _, err := p.sender.Send(ctx, body); err != nil {
		return p.fail(ctx, rec, req, pipeline.Classify(err, pipeline.CodeSQSMessage, pipeline.StepSQSMessage, "Failed to send success message"))
	}

	p.track(ctx, req.ContentID, StatusCompleted)
	metrics.AddChunks(string(req.ContentType), len(chunks))
	slog.InfoContext(ctx, "record processed", "content_id", req.ContentID, "chunks", len(chunks), "processing_time_ms", handleTime.Milliseconds())

	return Outcome{
		MessageID:   rec.ID,
		ContentID:   req.ContentID,
		ContentType: req.ContentType,
		Name:        displayName(req),
		Status:      OutcomeSuccess,
		ChunkCount:  len(chunks),
	}
}

// fail reports a classified failure for the record. Reporting problems are
// logged and never escalate.
func (p *BatchProcessor) fail(ctx context.Context, rec queue.Record, req *message.ProcessRequest, perr *pipeline.Error) Outcome {
	var id message.Identity
	name := ""
	if req != nil {
		id = req.Identity()
		name = displayName(req)
	} else {
		id = message.PeekIdentity(rec.Body)
	}

	slog.ErrorContext(ctx, "record failed",
		"message_id", rec.ID,
		"content_id", id.ContentID,
		"error_code", perr.Code,
		"failed_step", perr.Step,
		"error", perr.Error(),
	)
	metrics.CaptureFailure(string(perr.Code))

	failure := message.NewFailure(id, string(perr.Code), string(perr.Step), perr.Error(), perr.StackTrace())
	p.sendFailure(ctx, failure)

	if p.recorder != nil {
		if err := p.recorder.RecordFailure(ctx, rec.Body, failure); err != nil {
			slog.WarnContext(ctx, "failed to record failed job", "content_id", id.ContentID, "error", err)
		}
	}
	if id.ContentID != message.UnknownContentID {
		p.track(ctx, id.ContentID, StatusFailed)
	}

	return Outcome{
		MessageID:   rec.ID,
		ContentID:   id.ContentID,
		ContentType: id.ContentType,
		Name:        name,
		Status:      OutcomeFailed,
		ErrorCode:   perr.Code,
		FailedStep:  perr.Step,
		Err:         perr,
	}
}

func (p *BatchProcessor) sendFailure(ctx context.Context, failure *message.ProcessFailure) {
	defer func() {
		if r := recover(); r != nil {
			slog.Log(ctx, logger.LevelCritical, "critical error in error handling", "content_id", failure.ContentID, "panic", r)
		}
	}()

	body, err := json.Marshal(failure)
	if err == nil {
		_, err = p.sender.Send(ctx, body)
	}
	if err != nil {
		metrics.IncrementResponseSendFailures()
		slog.Log(ctx, logger.LevelCritical, "critical error in error handling",
			"content_id", failure.ContentID,
			"error_code", failure.ErrorCode,
			"error", err,
		)
	}
}

func (p *BatchProcessor) track(ctx context.Context, contentID, status string) {
	if p.tracker == nil {
		return
	}
	if err := p.tracker.SetStatus(ctx, contentID, status); err != nil {
		slog.WarnContext(ctx, "failed to update content status", "content_id", contentID, "status", status, "error", err)
	}
}

func classifyDecode(err error) *pipeline.Error {
	var syntaxErr *message.SyntaxError
	if errors.As(err, &syntaxErr) {
		return pipeline.JSONDecode(fmt.Sprintf("Invalid JSON in message body: %v", syntaxErr.Err), err)
	}
	return pipeline.Deserialization(fmt.Sprintf("Failed to deserialize message: %v", err), err)
}

func displayName(req *message.ProcessRequest) string {
	switch {
	case req.FileName != "":
		return req.FileName
	case req.Name != "":
		return req.Name
	default:
		return req.WebURL
	}
}

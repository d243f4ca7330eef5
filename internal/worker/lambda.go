package worker

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"kontext/apps/processor/internal/queue"
)

type RecordSummary struct {
	MessageID       string `json:"messageId"`
	Name            string `json:"name,omitempty"`
	ContentType     string `json:"contentType"`
	ChunksGenerated int    `json:"chunksGenerated"`
	Status          string `json:"status"`
}

type RecordFailure struct {
	MessageID  string `json:"messageId"`
	ErrorCode  string `json:"errorCode"`
	FailedStep string `json:"failedStep"`
	Error      string `json:"error"`
}

// BatchSummary reports a whole invocation: 200 when every record
// succeeded, 207 otherwise.
type BatchSummary struct {
	StatusCode int             `json:"statusCode"`
	Processed  int             `json:"processedMessages"`
	Failed     int             `json:"failedMessages"`
	Results    []RecordSummary `json:"results"`
	Failures   []RecordFailure `json:"failures,omitempty"`
}

func (r BatchResult) Summary() BatchSummary {
	s := BatchSummary{
		StatusCode: http.StatusOK,
		Processed:  r.Succeeded,
		Failed:     r.Failed,
		Results:    []RecordSummary{},
	}
	if r.Failed > 0 {
		s.StatusCode = http.StatusMultiStatus
	}
	for _, o := range r.Outcomes {
		if o.Status == OutcomeSuccess {
			s.Results = append(s.Results, RecordSummary{
				MessageID:       o.MessageID,
				Name:            o.Name,
				ContentType:     string(o.ContentType),
				ChunksGenerated: o.ChunkCount,
				Status:          string(o.Status),
			})
			continue
		}
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		s.Failures = append(s.Failures, RecordFailure{
			MessageID:  o.MessageID,
			ErrorCode:  string(o.ErrorCode),
			FailedStep: string(o.FailedStep),
			Error:      errText,
		})
	}
	return s
}

// HandleSQSEvent is the triggered-batch entry point. Failed records are
// returned as batch item failures so only they are redelivered.
func (p *BatchProcessor) HandleSQSEvent(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	records := make([]queue.Record, 0, len(ev.Records))
	for _, r := range ev.Records {
		records = append(records, queue.Record{
			ID:            r.MessageId,
			Body:          []byte(r.Body),
			ReceiptHandle: r.ReceiptHandle,
		})
	}

	result := p.ProcessBatch(ctx, records)
	summary := result.Summary()
	slog.InfoContext(ctx, "invocation complete",
		"status_code", summary.StatusCode,
		"processed", summary.Processed,
		"failed", summary.Failed,
		"results", summary.Results,
		"failures", summary.Failures,
	)

	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, id := range result.FailedIDs() {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return resp, nil
}

package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"kontext/apps/processor/internal/queue"
)

// HandleDelivery processes a push delivery as a batch of one. Failures whose
// code is permanent are rejected so the same body is not replayed forever.
func (p *BatchProcessor) HandleDelivery(ctx context.Context, rec queue.Record) queue.Disposition {
	result := p.ProcessBatch(ctx, []queue.Record{rec})
	if result.Failed == 0 {
		return queue.Ack
	}
	for _, o := range result.Outcomes {
		if o.Status == OutcomeFailed && !o.ErrorCode.Permanent() {
			return queue.Requeue
		}
	}
	return queue.Reject
}

// NSQHandler adapts the processor to an NSQ consumer. Returning an error
// makes nsqd requeue the message, up to the consumer's MaxAttempts.
type NSQHandler struct {
	ctx       context.Context
	processor *BatchProcessor
}

// NewNSQHandler binds handling to ctx so a shutdown cancels in-flight
// records.
func NewNSQHandler(ctx context.Context, p *BatchProcessor) *NSQHandler {
	return &NSQHandler{ctx: ctx, processor: p}
}

func (h *NSQHandler) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	rec := queue.Record{ID: string(m.ID[:]), Body: m.Body}
	switch h.processor.HandleDelivery(h.ctx, rec) {
	case queue.Requeue:
		slog.WarnContext(h.ctx, "nsq message failed, leaving for requeue", "message_id", rec.ID, "attempts", m.Attempts)
		return fmt.Errorf("processing message %s failed", rec.ID)
	case queue.Reject:
		slog.WarnContext(h.ctx, "nsq message failed permanently, dropping", "message_id", rec.ID, "attempts", m.Attempts)
	}
	return nil
}

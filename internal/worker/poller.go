package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kontext/apps/processor/internal/queue"
)

// QueueClient is the polling side of the inbound queue.
type QueueClient interface {
	Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds int) ([]queue.Record, error)
	Delete(ctx context.Context, queueURL, receiptHandle string) error
}

type PollerConfig struct {
	QueueURL     string
	MaxMessages  int
	WaitSeconds  int
	ErrorBackoff time.Duration
}

// Poller long-polls the inbound queue and deletes the records that
// succeeded. Failed records stay on the queue for redelivery.
type Poller struct {
	client    QueueClient
	processor *BatchProcessor
	cfg       PollerConfig
}

func NewPoller(client QueueClient, processor *BatchProcessor, cfg PollerConfig) *Poller {
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10
	}
	if cfg.WaitSeconds < 0 || cfg.WaitSeconds > 20 {
		cfg.WaitSeconds = 20
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	return &Poller{client: client, processor: processor, cfg: cfg}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "poller started", "queue_url", p.cfg.QueueURL, "max_messages", p.cfg.MaxMessages)
	for {
		if err := ctx.Err(); err != nil {
			slog.InfoContext(ctx, "poller stopped")
			return nil
		}

		if _, err := p.PollOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			slog.ErrorContext(ctx, "poll failed, backing off", "error", err, "backoff", p.cfg.ErrorBackoff)
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.ErrorBackoff):
			}
		}
	}
}

// PollOnce receives one batch, processes it and acknowledges successes.
func (p *Poller) PollOnce(ctx context.Context) (BatchResult, error) {
	records, err := p.client.Receive(ctx, p.cfg.QueueURL, p.cfg.MaxMessages, p.cfg.WaitSeconds)
	if err != nil {
		return BatchResult{}, err
	}
	if len(records) == 0 {
		return BatchResult{}, nil
	}

	result := p.processor.ProcessBatch(ctx, records)
	for i, o := range result.Outcomes {
		if o.Status != OutcomeSuccess {
			continue
		}
		if err := p.client.Delete(ctx, p.cfg.QueueURL, records[i].ReceiptHandle); err != nil {
			slog.ErrorContext(ctx, "failed to delete processed message", "message_id", o.MessageID, "error", err)
		}
	}
	return result, nil
}

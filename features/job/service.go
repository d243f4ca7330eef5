package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kontext/apps/processor/internal/message"
)

var ErrRequeueTimeout = errors.New("timeout waiting for requeue")

// Requeuer puts a raw body back on the inbound queue.
type Requeuer interface {
	Send(ctx context.Context, body []byte) (string, error)
}

type Service struct {
	repo           Repository
	requeuer       Requeuer
	logger         *slog.Logger
	requeueTimeout time.Duration
}

func NewService(repo Repository, requeuer Requeuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, requeuer: requeuer, logger: logger, requeueTimeout: 5 * time.Second}
}

// WithRequeueTimeout overrides how long Retry waits for the requeue.
func (s *Service) WithRequeueTimeout(d time.Duration) *Service {
	s.requeueTimeout = d
	return s
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// RecordFailure saves a failed record together with its raw inbound body.
func (s *Service) RecordFailure(ctx context.Context, body []byte, failure *message.ProcessFailure) error {
	j := &Job{
		ContentID:   failure.ContentID,
		ContentType: string(failure.ContentType),
		ErrorCode:   failure.ErrorCode,
		FailedStep:  failure.FailedStep,
		Payload:     string(body),
		Error:       failure.ErrorMessage,
		Retries:     failure.RetryCount,
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "failed job recorded", "id", j.ID, "content_id", j.ContentID, "error_code", j.ErrorCode)
	return nil
}

// Retry requeues the stored body and removes the job.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.requeueTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.requeuer.Send(ctx, []byte(job.Payload))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrRequeueTimeout
		}
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "job requeued", "id", id, "content_id", job.ContentID)
	return s.repo.Delete(ctx, id)
}

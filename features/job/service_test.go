package job_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kontext/apps/processor/features/job"
	"kontext/apps/processor/internal/message"
)

func TestService_RecordFailure(t *testing.T) {
	mockRepo := new(MockRepo)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := job.NewService(mockRepo, nil, logger)

	body := []byte(`{"contentId":"k-1","contentType":"document","retryCount":2}`)
	failure := message.NewFailure(message.PeekIdentity(body), "S3_DOWNLOAD_ERROR", "s3_download", "Failed to download file a.pdf", "")

	mockRepo.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		return j.ContentID == "k-1" &&
			j.ContentType == "document" &&
			j.ErrorCode == "S3_DOWNLOAD_ERROR" &&
			j.FailedStep == "s3_download" &&
			j.Payload == string(body) &&
			j.Error == "Failed to download file a.pdf" &&
			j.Retries == 2
	})).Return(nil)

	require.NoError(t, svc.RecordFailure(context.Background(), body, failure))
	mockRepo.AssertExpectations(t)
}

func TestService_RecordFailure_KeepsMalformedBody(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil, slog.Default())

	body := []byte(`{"contentId": `)
	failure := message.NewFailure(message.PeekIdentity(body), "JSON_DECODE_ERROR", "message_parsing", "Invalid JSON in message body", "")

	mockRepo.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		return j.ContentID == message.UnknownContentID && j.Payload == string(body)
	})).Return(errors.New("db down"))

	assert.EqualError(t, svc.RecordFailure(context.Background(), body, failure), "db down")
}

func TestService_List(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil, slog.Default())
	mockRepo.On("List", mock.Anything).Return([]job.Job{{ID: "1"}, {ID: "2"}}, nil)

	jobs, err := svc.List(context.Background())
	assert.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, "1", jobs[0].ID)
}

func TestService_Retry_Timeout(t *testing.T) {
	mockRepo := new(MockRepo)
	mockRequeuer := &MockRequeuer{sleep: 200 * time.Millisecond}
	svc := job.NewService(mockRepo, mockRequeuer, slog.Default()).WithRequeueTimeout(20 * time.Millisecond)

	mockRepo.On("Get", mock.Anything, "1").Return(&job.Job{ID: "1", Payload: "{}"}, nil)
	mockRequeuer.On("Send", mock.Anything, mock.Anything).Return("", nil).Maybe()

	err := svc.Retry(context.Background(), "1")
	assert.ErrorIs(t, err, job.ErrRequeueTimeout)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, "1")
}

func TestService_Retry_ContextCancellation(t *testing.T) {
	mockRepo := new(MockRepo)
	mockRequeuer := &MockRequeuer{sleep: 200 * time.Millisecond}
	svc := job.NewService(mockRepo, mockRequeuer, slog.Default())

	mockRepo.On("Get", mock.Anything, "1").Return(&job.Job{ID: "1", Payload: "{}"}, nil)
	mockRequeuer.On("Send", mock.Anything, mock.Anything).Return("", nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Retry(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

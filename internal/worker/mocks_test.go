package worker_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"kontext/apps/processor/internal/materialize"
	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/queue"
)

// Mocks

type MockRouter struct{ mock.Mock }

func (m *MockRouter) Route(ctx context.Context, req *message.ProcessRequest) ([]message.Chunk, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]message.Chunk), args.Error(1)
}

type MockMaterializer struct{ mock.Mock }

func (m *MockMaterializer) Materialize(ctx context.Context, chunks []message.Chunk, contentID string) (materialize.Locator, error) {
	args := m.Called(ctx, chunks, contentID)
	return args.Get(0).(materialize.Locator), args.Error(1)
}

type MockSender struct{ mock.Mock }

func (m *MockSender) Send(ctx context.Context, body []byte) (string, error) {
	args := m.Called(ctx, body)
	return args.String(0), args.Error(1)
}

// Events decodes every body sent so far.
func (m *MockSender) Events() []map[string]any {
	var out []map[string]any
	for _, c := range m.Calls {
		var ev map[string]any
		if err := json.Unmarshal(c.Arguments.Get(1).([]byte), &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

type MockRecorder struct{ mock.Mock }

func (m *MockRecorder) RecordFailure(ctx context.Context, body []byte, failure *message.ProcessFailure) error {
	args := m.Called(ctx, body, failure)
	return args.Error(0)
}

type MockTracker struct{ mock.Mock }

func (m *MockTracker) SetStatus(ctx context.Context, contentID, status string) error {
	args := m.Called(ctx, contentID, status)
	return args.Error(0)
}

type MockQueueClient struct{ mock.Mock }

func (m *MockQueueClient) Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds int) ([]queue.Record, error) {
	args := m.Called(ctx, queueURL, maxMessages, waitSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Record), args.Error(1)
}

func (m *MockQueueClient) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	args := m.Called(ctx, queueURL, receiptHandle)
	return args.Error(0)
}

func docBody(contentID string) []byte {
	return []byte(`{"contentId":"` + contentID + `","contentType":"document","fileName":"` + contentID + `.pdf","s3Key":"uploads/` + contentID + `.pdf","s3Bucket":"docs","mimeType":"application/pdf","fileSize":1024,"projectId":"p-1","userId":"u-1"}`)
}

func isContent(id string) any {
	return mock.MatchedBy(func(req *message.ProcessRequest) bool { return req.ContentID == id })
}

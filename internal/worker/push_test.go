package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"kontext/apps/processor/internal/pipeline"
	"kontext/apps/processor/internal/queue"
	"kontext/apps/processor/internal/worker"
)

func nsqMessage(body []byte) *nsq.Message {
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	return nsq.NewMessage(id, body)
}

func TestHandleDelivery(t *testing.T) {
	f := newFixture()
	f.expectSuccess("k-1", twoChunks)
	f.router.On("Route", mock.Anything, isContent("k-2")).
		Return(nil, pipeline.Download("Failed to download file uploads/k-2.pdf", errors.New("timeout")))
	f.router.On("Route", mock.Anything, isContent("k-3")).
		Return(nil, pipeline.UnsupportedContentType("Unsupported content type: spreadsheet"))
	f.sender.On("Send", mock.Anything, mock.Anything).Return("msg", nil)
	p := f.processor()

	tests := []struct {
		name string
		body []byte
		want queue.Disposition
	}{
		{"success", docBody("k-1"), queue.Ack},
		{"transient failure", docBody("k-2"), queue.Requeue},
		{"unsupported content type", docBody("k-3"), queue.Reject},
		{"malformed json", []byte("nope"), queue.Reject},
		{"missing field", []byte(`{"contentType":"document"}`), queue.Reject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.HandleDelivery(context.Background(), queue.Record{ID: "d", Body: tt.body}))
		})
	}
}

func TestNSQHandler(t *testing.T) {
	f := newFixture()
	f.expectSuccess("k-1", twoChunks)
	f.router.On("Route", mock.Anything, isContent("k-2")).
		Return(nil, pipeline.Download("Failed to download file uploads/k-2.pdf", errors.New("timeout")))
	f.sender.On("Send", mock.Anything, mock.Anything).Return("msg", nil)
	h := worker.NewNSQHandler(context.Background(), f.processor())

	assert.NoError(t, h.HandleMessage(nsqMessage(docBody("k-1"))))
	assert.Error(t, h.HandleMessage(nsqMessage(docBody("k-2"))))

	// a permanent failure still emits its failure event but is not requeued
	before := len(f.sender.Calls)
	assert.NoError(t, h.HandleMessage(nsqMessage([]byte(`{"contentType":"document"}`))))
	assert.Len(t, f.sender.Calls, before+1)

	// empty bodies are dropped without a response event
	before = len(f.sender.Calls)
	assert.NoError(t, h.HandleMessage(nsqMessage(nil)))
	assert.Len(t, f.sender.Calls, before)
}

func TestNSQHandler_CancelledContextRequeues(t *testing.T) {
	f := newFixture()
	cancelled := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() != nil })
	f.router.On("Route", cancelled, isContent("k-1")).Return(nil, context.Canceled)
	f.sender.On("Send", mock.Anything, mock.Anything).Return("msg", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := worker.NewNSQHandler(ctx, f.processor())

	assert.Error(t, h.HandleMessage(nsqMessage(docBody("k-1"))))
	f.router.AssertExpectations(t)
}

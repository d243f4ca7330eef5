package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kontext/apps/processor/internal/message"
	"kontext/apps/processor/internal/pipeline"
)

type MockParser struct{ mock.Mock }

func (m *MockParser) Parse(ctx context.Context, req *message.ProcessRequest, chunkSize, overlap int) ([]message.Chunk, error) {
	args := m.Called(ctx, req, chunkSize, overlap)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]message.Chunk), args.Error(1)
}

type panickingParser struct{}

func (panickingParser) Parse(context.Context, *message.ProcessRequest, int, int) ([]message.Chunk, error) {
	var m map[string]int
	m["boom"]++
	return nil, nil
}

func request(ct message.ContentType) *message.ProcessRequest {
	return &message.ProcessRequest{ContentID: "k-1", ContentType: ct}
}

func TestDispatcher_RoutesByContentType(t *testing.T) {
	doc, web := new(MockParser), new(MockParser)
	want := []message.Chunk{{Content: "x", Metadata: map[string]any{"chunk_index": 0}}}
	doc.On("Parse", mock.Anything, mock.Anything, 512, 128).Return(want, nil)
	web.On("Parse", mock.Anything, mock.Anything, 512, 128).Return([]message.Chunk{}, nil)

	d := New(DefaultRegistry(doc, web), 512, 128)

	got, err := d.Route(context.Background(), request(message.ContentDocument))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = d.Route(context.Background(), request(message.ContentWeb))
	require.NoError(t, err)
	assert.Empty(t, got)

	doc.AssertNumberOfCalls(t, "Parse", 1)
	web.AssertNumberOfCalls(t, "Parse", 1)
}

func TestDispatcher_NotImplementedMediaTypes(t *testing.T) {
	d := New(DefaultRegistry(new(MockParser), new(MockParser)), 512, 128)

	tests := []struct {
		ct      message.ContentType
		message string
	}{
		{message.ContentImage, "Image processing not yet implemented"},
		{message.ContentVideo, "Video processing not yet implemented"},
		{message.ContentAudio, "Audio processing not yet implemented"},
	}
	for _, tt := range tests {
		t.Run(string(tt.ct), func(t *testing.T) {
			_, err := d.Route(context.Background(), request(tt.ct))
			perr, ok := pipeline.As(err)
			require.True(t, ok)
			assert.Equal(t, pipeline.CodeNotImplemented, perr.Code)
			assert.Equal(t, pipeline.StepParserSelection, perr.Step)
			assert.Equal(t, tt.message, perr.Error())
		})
	}
}

func TestDispatcher_UnsupportedContentType(t *testing.T) {
	d := New(DefaultRegistry(new(MockParser), new(MockParser)), 512, 128)

	_, err := d.Route(context.Background(), request("spreadsheet"))
	perr, ok := pipeline.As(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.CodeUnsupportedContentType, perr.Code)
	assert.Equal(t, pipeline.StepParserSelection, perr.Step)
	assert.Equal(t, "Unsupported content type: spreadsheet", perr.Error())
}

func TestDispatcher_ErrorClassification(t *testing.T) {
	t.Run("classified errors pass through", func(t *testing.T) {
		doc := new(MockParser)
		classified := pipeline.Download("Failed to download file a.pdf", errors.New("denied"))
		doc.On("Parse", mock.Anything, mock.Anything, 512, 128).Return(nil, classified)

		_, err := New(DefaultRegistry(doc, nil), 512, 128).Route(context.Background(), request(message.ContentDocument))
		perr, ok := pipeline.As(err)
		require.True(t, ok)
		assert.Same(t, classified, perr)
	})

	t.Run("unclassified errors become handler errors", func(t *testing.T) {
		doc := new(MockParser)
		doc.On("Parse", mock.Anything, mock.Anything, 512, 128).Return(nil, errors.New("nil pointer"))

		_, err := New(DefaultRegistry(doc, nil), 512, 128).Route(context.Background(), request(message.ContentDocument))
		perr, ok := pipeline.As(err)
		require.True(t, ok)
		assert.Equal(t, pipeline.CodeHandler, perr.Code)
		assert.Equal(t, pipeline.StepRequestProcessing, perr.Step)
		assert.Equal(t, "Unexpected error processing request: nil pointer", perr.Error())
	})

	t.Run("panics become handler errors", func(t *testing.T) {
		d := New(Registry{message.ContentDocument: panickingParser{}}, 512, 128)

		chunks, err := d.Route(context.Background(), request(message.ContentDocument))
		assert.Nil(t, chunks)
		perr, ok := pipeline.As(err)
		require.True(t, ok)
		assert.Equal(t, pipeline.CodeHandler, perr.Code)
		assert.NotEmpty(t, perr.StackTrace())
	})
}

func TestNew_Defaults(t *testing.T) {
	doc := new(MockParser)
	doc.On("Parse", mock.Anything, mock.Anything, 512, 128).Return([]message.Chunk{}, nil)

	_, err := New(DefaultRegistry(doc, nil), 0, -1).Route(context.Background(), request(message.ContentDocument))
	require.NoError(t, err)
	doc.AssertExpectations(t)
}

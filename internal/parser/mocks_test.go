package parser

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kontext/apps/processor/internal/crawl"
	"kontext/apps/processor/internal/extract"
)

type MockDownloader struct{ mock.Mock }

func (m *MockDownloader) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) Extract(ctx context.Context, path string) (*extract.Document, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extract.Document), args.Error(1)
}

type MockResolver struct{ mock.Mock }

func (m *MockResolver) ForFile(mimeType, fileName string) (extract.Extractor, error) {
	args := m.Called(mimeType, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(extract.Extractor), args.Error(1)
}

type MockCrawler struct{ mock.Mock }

func (m *MockCrawler) Crawl(ctx context.Context, pageURL string) (*crawl.Result, error) {
	args := m.Called(ctx, pageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawl.Result), args.Error(1)
}

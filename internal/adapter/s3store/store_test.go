package s3store_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kontext/apps/processor/internal/adapter/s3store"
)

// fakeS3 serves path-style object requests from memory.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	buckets  map[string]bool
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, _, isObject := strings.Cut(strings.TrimSuffix(path, "/"), "/")

	switch {
	case r.Method == http.MethodHead && !isObject:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && !isObject:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && isObject:
		body, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	case r.Method == http.MethodPut && isObject:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newStore(t *testing.T) (*s3store.Store, *fakeS3) {
	fake := &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := s3store.New(s3store.Options{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test-secret",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return store, fake
}

func TestStore_Download(t *testing.T) {
	store, fake := newStore(t)
	fake.objects["docs/uploads/report.pdf"] = []byte("%PDF-1.4 fake")

	content, err := store.Download(context.Background(), "docs", "uploads/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(content))
}

func TestStore_DownloadMissingKey(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Download(context.Background(), "docs", "uploads/missing.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs/uploads/missing.pdf")
}

func TestStore_Upload(t *testing.T) {
	store, fake := newStore(t)

	err := store.Upload(context.Background(), "out", "processed/k-1-chunks.json", []byte(`[{"content":"hello"}]`), "application/json")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	stored, ok := fake.objects["out/processed/k-1-chunks.json"]
	require.True(t, ok)
	assert.Contains(t, string(stored), `"content":"hello"`)
}

func TestStore_EnsureBucket(t *testing.T) {
	store, fake := newStore(t)

	require.NoError(t, store.EnsureBucket(context.Background(), "out"))
	require.NoError(t, store.EnsureBucket(context.Background(), "out"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, fake.buckets["out"])
	creates := 0
	for _, r := range fake.requests {
		if r == "PUT /out/" || r == "PUT /out" {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
}

package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kontext/apps/processor/internal/config"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("S3_BUCKET_NAME", "processed")
	t.Setenv("PROCESS_QUEUE_URL", "https://sqs.ap-south-1.amazonaws.com/1/process")
	t.Setenv("PROCESSING_QUEUE_URL", "https://sqs.ap-south-1.amazonaws.com/1/processing")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.AWSRegion)
	assert.Equal(t, config.TransportSQS, cfg.Transport)
	assert.Equal(t, 10, cfg.MaxMessages)
	assert.Equal(t, 20, cfg.WaitTimeSeconds)
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 128, cfg.ChunkOverlap)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, "gpt2", cfg.Tokenizer)
	assert.Equal(t, "http", cfg.Crawler)
	assert.Equal(t, 30*time.Second, cfg.CrawlTimeout())
	assert.Equal(t, 2*time.Second, cfg.CrawlSettleDelay())
	assert.Equal(t, 24*time.Hour, cfg.StatusTTL())
	assert.Equal(t, 8081, cfg.ServerPort)
	assert.Equal(t, uint16(5), cfg.NSQMaxAttempts)
	assert.Empty(t, cfg.AMQPDeadLetterExchange)
	assert.False(t, cfg.EnableLedger)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	setBaseEnv(t)
	content := []byte("CHUNK_SIZE=256\nCHUNK_OVERLAP=32")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")
	defer os.Unsetenv("CHUNK_SIZE")
	defer os.Unsetenv("CHUNK_OVERLAP")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 256, cfg.ChunkSize)
	assert.Equal(t, 32, cfg.ChunkOverlap)
}

func TestLoadConfig_Toggles(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRANSPORT", "nsq")
	t.Setenv("ENABLE_LEDGER", "true")
	t.Setenv("ENABLE_STATUS_CACHE", "true")
	t.Setenv("WORKER_CONCURRENCY", "4")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.TransportNSQ, cfg.Transport)
	assert.True(t, cfg.EnableLedger)
	assert.True(t, cfg.EnableStatusCache)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Contains(t, cfg.DSN(), "dbname=kontext")
}

func TestLoadConfig_MissingBucket(t *testing.T) {
	t.Setenv("S3_BUCKET_NAME", "")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"

	"kontext/apps/processor/internal/adapter/rabbitmq"
	"kontext/apps/processor/internal/adapter/s3store"
	sqsadapter "kontext/apps/processor/internal/adapter/sqs"
	"kontext/apps/processor/internal/adapter/statuscache"
	"kontext/apps/processor/internal/config"
)

// Dependencies are the external clients, created once and shared. Optional
// ones are nil when their feature or transport is off.
type Dependencies struct {
	Blobs       *s3store.Store
	Queue       *sqsadapter.Client
	NSQProducer *nsq.Producer
	Broker      *rabbitmq.Broker
	DB          *sql.DB
	Redis       *redis.Client
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	blobs, err := s3store.New(s3store.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.AWSRegion,
		AccessKey: cfg.AWSAccessKeyID,
		SecretKey: cfg.AWSSecretAccessKey,
		UseSSL:    cfg.S3UseSSL,
		Timeout:   cfg.S3RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}
	deps.Blobs = blobs

	if cfg.S3EnsureBucket {
		err := WithRetry(ctx, cfg.BootstrapRetryAttempts, retryDelay, func(ctx context.Context) error {
			return blobs.EnsureBucket(ctx, cfg.S3Bucket)
		})
		if err != nil {
			return nil, fmt.Errorf("bucket setup error: %w", err)
		}
	}

	switch cfg.Transport {
	case config.TransportSQS:
		deps.Queue, err = sqsadapter.New(ctx, sqsadapter.Options{
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKeyID,
			SecretKey: cfg.AWSSecretAccessKey,
			Endpoint:  cfg.AWSEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("sqs client error: %w", err)
		}
	case config.TransportNSQ:
		deps.NSQProducer, err = nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
	case config.TransportAMQP:
		deps.Broker, err = rabbitmq.Dial(ctx, cfg.AMQPURL, cfg.BootstrapRetryAttempts, retryDelay)
		if err != nil {
			return nil, err
		}
		if err := deps.Broker.DeclareQueue(cfg.AMQPRequestQueue, cfg.AMQPDeadLetterExchange); err != nil {
			deps.Close()
			return nil, err
		}
		if err := deps.Broker.DeclareQueue(cfg.AMQPResponseQueue, ""); err != nil {
			deps.Close()
			return nil, err
		}
	}

	if cfg.EnableLedger {
		deps.DB, err = openLedger(ctx, cfg, retryDelay)
		if err != nil {
			deps.Close()
			return nil, err
		}
	}

	if cfg.EnableStatusCache {
		deps.Redis, err = statuscache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			deps.Close()
			return nil, err
		}
	}

	return deps, nil
}

func openLedger(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := WithRetry(ctx, cfg.BootstrapRetryAttempts, retryDelay, db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	slog.InfoContext(ctx, "failed-job ledger ready")
	return db, nil
}

// WithRetry calls fn up to attempts times, sleeping delay between failures.
func WithRetry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "bootstrap step failed, retrying", "attempt", i+1, "max_attempts", attempts, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.Broker != nil {
		if err := d.Broker.Close(); err != nil {
			slog.Warn("failed to close amqp broker", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			slog.Warn("failed to close redis", "error", err)
		}
	}
}

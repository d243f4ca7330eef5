package statuscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("status not found")

// Tracker keeps the latest processing status per content id with a TTL.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{client: client, ttl: ttl}
}

// Connect opens a client and checks it with a ping.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func key(contentID string) string {
	return fmt.Sprintf("content:status:%s", contentID)
}

func (t *Tracker) SetStatus(ctx context.Context, contentID, status string) error {
	if err := t.client.Set(ctx, key(contentID), status, t.ttl).Err(); err != nil {
		return fmt.Errorf("set status for %s: %w", contentID, err)
	}
	return nil
}

func (t *Tracker) GetStatus(ctx context.Context, contentID string) (string, error) {
	status, err := t.client.Get(ctx, key(contentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status for %s: %w", contentID, err)
	}
	return status, nil
}

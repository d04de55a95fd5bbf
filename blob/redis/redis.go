// Package redis wires the blob.Store interface to Redis for deployments
// that offload payloads to a cache instead of an object store. Objects are
// content-addressed by the caller, so overwrites are idempotent.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/workfleet/fulfill/blob"
)

// Options configures the Store.
type Options struct {
	// Client is the Redis client to use. Required.
	Client goredis.UniversalClient
	// TTL bounds object lifetime; zero keeps objects until evicted.
	TTL time.Duration
}

// Store implements blob.Store on top of Redis strings.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

var _ blob.Store = (*Store)(nil)

// New builds a Redis-backed store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client, ttl: opts.TTL}, nil
}

// Put stores data under "bucket/key".
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := s.client.Set(ctx, objectKey(bucket, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get returns the object stored under "bucket/key".
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, objectKey(bucket, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

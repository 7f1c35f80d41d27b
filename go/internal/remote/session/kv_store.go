package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream key-value bucket used when none is configured
const DefaultBucket = "REMOTE_SESSIONS"

// KVStore persists values in a NATS JetStream key-value bucket
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore wraps an existing bucket
func NewKVStore(kv jetstream.KeyValue) *KVStore {
	return &KVStore{kv: kv}
}

// OpenKVStore creates the bucket if needed and returns a store using it
func OpenKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Remote control session identity",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create key-value bucket %s: %w", bucket, err)
	}
	return NewKVStore(kv), nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return string(entry.Value()), nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

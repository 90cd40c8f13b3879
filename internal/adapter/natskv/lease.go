// Package natskv implements run-once leases on a NATS JetStream KV bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Leases hands out keys at most once per bucket TTL across all replicas.
type Leases struct {
	kv     jetstream.KeyValue
	holder string
}

// Open creates or updates bucket with the given TTL. holder is stored as the
// value of every acquired key.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration, holder string) (*Leases, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "democrm job leases",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", bucket, err)
	}
	return &Leases{kv: kv, holder: holder}, nil
}

// TryAcquire claims key. It returns false without error when another
// holder claimed it first.
func (l *Leases) TryAcquire(ctx context.Context, key string) (bool, error) {
	_, err := l.kv.Create(ctx, key, []byte(l.holder))
	if errors.Is(err, jetstream.ErrKeyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv create %s: %w", key, err)
	}
	return true, nil
}

// Holder returns who owns key, or "" when it is free.
func (l *Leases) Holder(ctx context.Context, key string) (string, error) {
	entry, err := l.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return string(entry.Value()), nil
}

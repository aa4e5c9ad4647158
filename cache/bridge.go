package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/results"
	"github.com/BaSui01/taskflow/types"
)

// Record is the envelope persisted under a cache key. ExpiresAt is absent
// when the writing task configured no expiration: such records live forever.
type Record struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// Hit is a live cached result.
type Hit struct {
	Ref   *types.ResultRef
	Value any
}

// Bridge pairs a result store with an expiration window. One bridge serves
// one task definition; concurrent runs under the same key race read-then-
// write, last writer wins.
type Bridge struct {
	store      results.Store
	expiration *time.Duration
	logger     *zap.Logger
}

// NewBridge creates a bridge over store. A nil expiration means records
// never expire.
func NewBridge(store results.Store, expiration *time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{
		store:      store,
		expiration: expiration,
		logger:     logger.With(zap.String("component", "cache_bridge")),
	}
}

// Store returns the underlying result store.
func (b *Bridge) Store() results.Store { return b.store }

// Lookup checks for a live record under key. Any unreadable, undecodable or
// expired record is a miss; lookups never fail hard.
func (b *Bridge) Lookup(ctx context.Context, key string) (*Hit, bool) {
	ref := &types.ResultRef{Backend: b.store.Name(), StorageKey: key}
	payload, err := b.store.Read(ctx, ref)
	if err != nil {
		if !results.IsNotFound(err) {
			b.logger.Debug("cache read failed, treating as miss",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		b.logger.Debug("cache record corrupt, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		b.logger.Debug("cache record expired",
			zap.String("key", key), zap.Time("expires_at", *rec.ExpiresAt))
		return nil, false
	}

	value, err := results.Decode(rec.Value)
	if err != nil {
		b.logger.Debug("cache value undecodable, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return &Hit{Ref: ref, Value: value}, true
}

// Persist writes value under key with the bridge's expiration window and
// returns the reference that terminal states carry. A nil value persists as a
// legitimate cached null.
func (b *Bridge) Persist(ctx context.Context, key string, value any) (*types.ResultRef, error) {
	encoded, err := results.Encode(value)
	if err != nil {
		return nil, err
	}

	rec := Record{Key: key, CreatedAt: time.Now(), Value: encoded}
	if b.expiration != nil {
		exp := rec.CreatedAt.Add(*b.expiration)
		rec.ExpiresAt = &exp
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cache record: %w", err)
	}

	ref, err := b.store.Write(ctx, key, payload)
	if err != nil {
		return nil, fmt.Errorf("persist result under %q: %w", key, err)
	}
	return ref, nil
}

// Retrieve loads and decodes the value behind a state's result reference.
// Unlike Lookup it is a hard read: a missing payload is an error, because
// the caller asserted the result exists.
func (b *Bridge) Retrieve(ctx context.Context, ref *types.ResultRef) (any, error) {
	payload, err := b.store.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode cache record: %w", err)
	}
	return results.Decode(rec.Value)
}

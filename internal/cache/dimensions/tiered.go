package dimensions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/keys"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/observability"
)

// SharedStore is the optional second tier shared between edge instances.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

const (
	tierMemory = "memory"
	tierShared = "redis"
)

// Tiered puts the in-process Cache in front of an optional SharedStore.
// Shared-tier failures are logged and treated as misses.
type Tiered struct {
	local     *Cache
	shared    SharedStore
	opTimeout time.Duration
	logger    *slog.Logger
}

func NewTiered(local *Cache, shared SharedStore, opTimeout time.Duration, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Tiered{local: local, shared: shared, opTimeout: opTimeout, logger: logger}
}

func (t *Tiered) Local() *Cache { return t.local }

// Lookup checks memory, then the shared tier. A shared hit that is still
// within the TTL is copied into memory.
func (t *Tiered) Lookup(ctx context.Context, path string) (Record, bool) {
	if rec, ok := t.local.Get(path); ok {
		observability.IncDimensionHit(tierMemory)
		return rec, true
	}
	observability.IncDimensionMiss(tierMemory)

	if t.shared == nil {
		return Record{}, false
	}

	key := keys.Shared(keys.Normalize(path))
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()

	b, ok, err := t.shared.Get(opCtx, key)
	if err != nil {
		t.logger.WarnContext(ctx, "shared dimension lookup failed", "key", key, "err", err)
		observability.IncDimensionMiss(tierShared)
		return Record{}, false
	}
	if !ok {
		observability.IncDimensionMiss(tierShared)
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		t.logger.WarnContext(ctx, "discarding undecodable dimension record", "key", key, "err", err)
		observability.IncDimensionMiss(tierShared)
		return Record{}, false
	}
	t.local.Set(path, rec)
	// the memory tier applies TTL and dimension checks on our behalf
	rec, ok = t.local.Get(path)
	if !ok {
		observability.IncDimensionMiss(tierShared)
		return Record{}, false
	}
	observability.IncDimensionHit(tierShared)
	return rec, true
}

// Store writes rec to memory and, when configured, to the shared tier with
// the remaining TTL.
func (t *Tiered) Store(ctx context.Context, path string, rec Record) {
	t.local.Set(path, rec)
	if t.shared == nil {
		return
	}
	stored, ok := t.local.Get(path)
	if !ok {
		return
	}
	ttl := t.local.TTL() - t.local.now().Sub(stored.LastFetched)
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(stored)
	if err != nil {
		t.logger.WarnContext(ctx, "encode dimension record", "err", err)
		return
	}

	key := keys.Shared(keys.Normalize(path))
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()
	if err := t.shared.Set(opCtx, key, b, ttl); err != nil {
		t.logger.WarnContext(ctx, "shared dimension store failed", "key", key, "err", err)
	}
}

// Invalidate removes paths from both tiers and returns how many were held
// in memory.
func (t *Tiered) Invalidate(ctx context.Context, paths ...string) (int, error) {
	removed := 0
	sharedKeys := make([]string, 0, len(paths))
	for _, p := range paths {
		if t.local.Delete(p) {
			removed++
		}
		sharedKeys = append(sharedKeys, keys.Shared(keys.Normalize(p)))
	}
	if t.shared == nil || len(sharedKeys) == 0 {
		return removed, nil
	}
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()
	if err := t.shared.Del(opCtx, sharedKeys...); err != nil {
		return removed, fmt.Errorf("shared tier delete: %w", err)
	}
	return removed, nil
}

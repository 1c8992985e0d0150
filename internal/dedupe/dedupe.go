// Package dedupe suppresses webhook re-deliveries. The channel retries
// deliveries it considers unacknowledged, so every message id is claimed
// exactly once before processing.
package dedupe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is how long a claimed message id stays reserved. Channel retries
// arrive within minutes; a day covers delayed redeliveries comfortably.
const Window = 24 * time.Hour

// Deduper claims message ids. Claim returns true when the caller is first.
type Deduper interface {
	Claim(ctx context.Context, messageID string) bool
}

// RedisDeduper claims ids with SETNX so the claim holds across processes.
// A Redis failure fails open: processing a retry twice is recoverable by the
// engine's state CAS, dropping a first delivery is not.
type RedisDeduper struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(log *slog.Logger, client *redis.Client) *RedisDeduper {
	if log == nil {
		log = slog.Default()
	}
	return &RedisDeduper{
		client: client,
		logger: log.With(slog.String("service", "dedupe")),
	}
}

// Claim reserves the message id, returning true for the first claimant.
func (d *RedisDeduper) Claim(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return true
	}
	ok, err := d.client.SetNX(ctx, "dedupe:"+messageID, 1, Window).Result()
	if err != nil {
		d.logger.Warn("dedupe claim failed, processing anyway",
			slog.String("message_id", messageID),
			slog.Any("error", err),
		)
		return true
	}
	return ok
}

// MemoryDeduper is the single-process fallback used when Redis is not
// configured. Entries expire lazily on later claims.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryDeduper creates an in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]time.Time{}}
}

// Claim reserves the message id, returning true for the first claimant.
func (d *MemoryDeduper) Claim(_ context.Context, messageID string) bool {
	if messageID == "" {
		return true
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, at := range d.seen {
		if now.Sub(at) > Window {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[messageID]; ok {
		return false
	}
	d.seen[messageID] = now
	return true
}

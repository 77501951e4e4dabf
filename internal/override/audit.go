package override

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// AuditCapacity is the number of newest audit lines retained.
const AuditCapacity = 200

// AuditKey is the Redis list holding audit lines.
const AuditKey = "lotes_overrides_audit"

// AuditLog is a capped, best-effort log of override writes.
type AuditLog interface {
	Append(ctx context.Context, line string) error
	// Entries returns retained lines, newest first.
	Entries(ctx context.Context) ([]string, error)
}

// Ring is an in-memory AuditLog.
type Ring struct {
	mu    sync.Mutex
	lines []string // oldest first
	limit int
}

// NewRing constructs a ring holding at most limit lines (AuditCapacity
// when limit <= 0).
func NewRing(limit int) *Ring {
	if limit <= 0 {
		limit = AuditCapacity
	}
	return &Ring{limit: limit}
}

func (r *Ring) Append(_ context.Context, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if over := len(r.lines) - r.limit; over > 0 {
		r.lines = append([]string(nil), r.lines[over:]...)
	}
	return nil
}

func (r *Ring) Entries(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.lines))
	for i := len(r.lines) - 1; i >= 0; i-- {
		out = append(out, r.lines[i])
	}
	return out, nil
}

// RedisAudit stores lines in a Redis list trimmed after every push.
type RedisAudit struct {
	rdb   *redis.Client
	key   string
	limit int64
}

// NewRedisAudit constructs a Redis-backed audit log.
func NewRedisAudit(rdb *redis.Client, key string, limit int) *RedisAudit {
	if key == "" {
		key = AuditKey
	}
	if limit <= 0 {
		limit = AuditCapacity
	}
	return &RedisAudit{rdb: rdb, key: key, limit: int64(limit)}
}

func (a *RedisAudit) Append(ctx context.Context, line string) error {
	_, err := a.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, a.key, line)
		p.LTrim(ctx, a.key, 0, a.limit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("overrides: audit: %w", err)
	}
	return nil
}

func (a *RedisAudit) Entries(ctx context.Context) ([]string, error) {
	lines, err := a.rdb.LRange(ctx, a.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("overrides: audit: %w", err)
	}
	return lines, nil
}

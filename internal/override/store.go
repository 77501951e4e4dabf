package override

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists the override map as a single value.
type Store interface {
	Get(ctx context.Context) (Map, error)
	Set(ctx context.Context, m Map) error
}

// MemoryStore keeps the serialized map in memory.  Sessions sharing one
// MemoryStore behave like browser tabs sharing local storage.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Get(_ context.Context) (Map, error) {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	return decodeMap(raw)
}

func (s *MemoryStore) Set(_ context.Context, m Map) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = b
	s.mu.Unlock()
	return nil
}

// RedisStore keeps the map as a JSON string under one key.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore constructs a store using StorageKey when key is empty.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = StorageKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Get(ctx context.Context) (Map, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Map{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("overrides: get: %w", err)
	}
	return decodeMap(raw)
}

func (s *RedisStore) Set(ctx context.Context, m Map) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("overrides: set: %w", err)
	}
	return nil
}

// decodeMap tolerates an empty or corrupt value by starting over with an
// empty map, the same way a fresh browser profile would.
func decodeMap(raw []byte) (Map, error) {
	m := Map{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Map{}, nil
	}
	return m, nil
}

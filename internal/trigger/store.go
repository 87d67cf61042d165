package trigger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store holds trigger static data: per workflow, the last fire marker of each recurrence rule.
type Store interface {
	// Load returns the markers of workflowID; an unknown workflow yields an empty map.
	Load(ctx context.Context, workflowID string) (map[int]int, error)
	Save(ctx context.Context, workflowID string, lastFires map[int]int) error
	Delete(ctx context.Context, workflowID string) error
}

// MemoryStore is an in-memory Store used when Redis is not configured.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]map[int]int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]map[int]int)}
}

func (s *MemoryStore) Load(ctx context.Context, workflowID string) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int, len(s.m[workflowID]))
	for k, v := range s.m[workflowID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, workflowID string, lastFires map[int]int) error {
	cp := make(map[int]int, len(lastFires))
	for k, v := range lastFires {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[workflowID] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, workflowID)
	return nil
}

const defaultKeyPrefix = "callflow:trigger:"

// RedisStore keeps each workflow's markers in a hash keyed by rule index.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store on client. ttl > 0 expires idle workflows.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix, ttl: ttl}
}

func (s *RedisStore) key(workflowID string) string { return s.prefix + workflowID }

func (s *RedisStore) Load(ctx context.Context, workflowID string) (map[int]int, error) {
	raw, err := s.client.HGetAll(ctx, s.key(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("trigger store: load %s: %w", workflowID, err)
	}
	out := make(map[int]int, len(raw))
	for k, v := range raw {
		idx, err1 := strconv.Atoi(k)
		val, err2 := strconv.Atoi(v)
		if err1 != nil || err2 != nil {
			continue
		}
		out[idx] = val
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, workflowID string, lastFires map[int]int) error {
	key := s.key(workflowID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(lastFires) > 0 {
			values := make(map[string]any, len(lastFires))
			for k, v := range lastFires {
				values[strconv.Itoa(k)] = v
			}
			p.HSet(ctx, key, values)
			if s.ttl > 0 {
				p.Expire(ctx, key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trigger store: save %s: %w", workflowID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, workflowID string) error {
	if err := s.client.Del(ctx, s.key(workflowID)).Err(); err != nil {
		return fmt.Errorf("trigger store: delete %s: %w", workflowID, err)
	}
	return nil
}

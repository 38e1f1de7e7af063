package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digestmail/digestmail/internal/database"
	"github.com/digestmail/digestmail/internal/model"
)

const progressRedisPrefix = "merge_progress:"

// MemoryProgressStore keeps run progress in process memory
type MemoryProgressStore struct {
	mu   sync.RWMutex
	runs map[string]model.Progress
}

// NewMemoryProgressStore creates a new MemoryProgressStore
func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{runs: make(map[string]model.Progress)}
}

// Put stores the latest progress of a run
func (s *MemoryProgressStore) Put(_ context.Context, p model.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[p.RunID] = p
	return nil
}

// Get returns the latest progress of a run
func (s *MemoryProgressStore) Get(_ context.Context, runID string) (*model.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// RedisProgressStore keeps run progress in Redis so any server instance, or
// the CLI, can report on a run.
type RedisProgressStore struct {
	rdb *database.Redis
	ttl time.Duration
}

// NewRedisProgressStore creates a new RedisProgressStore
func NewRedisProgressStore(rdb *database.Redis, ttl time.Duration) *RedisProgressStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisProgressStore{rdb: rdb, ttl: ttl}
}

// Put stores the latest progress of a run
func (s *RedisProgressStore) Put(ctx context.Context, p model.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := s.rdb.SetWithTTL(ctx, progressRedisPrefix+p.RunID, data, s.ttl); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// Get returns the latest progress of a run
func (s *RedisProgressStore) Get(ctx context.Context, runID string) (*model.Progress, error) {
	data, err := s.rdb.GetString(ctx, progressRedisPrefix+runID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	var p model.Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

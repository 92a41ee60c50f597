package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ehr/ptl/internal/domain/pathway"
)

// TierStore remembers the last tier committed for each monitored entity.
// Entities never seen report TierUnclassified.
type TierStore interface {
	Get(ctx context.Context, id uuid.UUID) (pathway.Tier, error)
	Set(ctx context.Context, id uuid.UUID, tier pathway.Tier) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type MemoryTierStore struct {
	mu    sync.RWMutex
	tiers map[uuid.UUID]pathway.Tier
}

func NewMemoryTierStore() *MemoryTierStore {
	return &MemoryTierStore{tiers: make(map[uuid.UUID]pathway.Tier)}
}

func (s *MemoryTierStore) Get(_ context.Context, id uuid.UUID) (pathway.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tiers[id]; ok {
		return t, nil
	}
	return pathway.TierUnclassified, nil
}

func (s *MemoryTierStore) Set(_ context.Context, id uuid.UUID, tier pathway.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[id] = tier
	return nil
}

func (s *MemoryTierStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tiers, id)
	return nil
}

const DefaultTierKey = "ptl:tiers"

// hashClient is the subset of the redis client used by RedisTierStore.
type hashClient interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd
}

// RedisTierStore keeps tiers in a single hash so state survives restarts and
// is shared by every replica.
type RedisTierStore struct {
	rdb hashClient
	key string
}

func NewRedisTierStore(rdb hashClient, key string) *RedisTierStore {
	if key == "" {
		key = DefaultTierKey
	}
	return &RedisTierStore{rdb: rdb, key: key}
}

func (s *RedisTierStore) Get(ctx context.Context, id uuid.UUID) (pathway.Tier, error) {
	v, err := s.rdb.HGet(ctx, s.key, id.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return pathway.TierUnclassified, nil
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", s.key, err)
	}
	return pathway.Tier(v), nil
}

func (s *RedisTierStore) Set(ctx context.Context, id uuid.UUID, tier pathway.Tier) error {
	if err := s.rdb.HSet(ctx, s.key, id.String(), string(tier)).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisTierStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.rdb.HDel(ctx, s.key, id.String()).Err()
}

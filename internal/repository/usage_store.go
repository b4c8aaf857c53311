package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-rewards-api/internal/models"
)

// RedisUsageStore keeps per-student cap trackers in Redis so replicas share
// the same daily and weekly counters. Keys expire after the TTL so stale
// trackers clean themselves up.
type RedisUsageStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUsageStore constructs the store.
func NewRedisUsageStore(client *redis.Client, ttl time.Duration) *RedisUsageStore {
	if ttl <= 0 {
		ttl = 8 * 24 * time.Hour
	}
	return &RedisUsageStore{client: client, ttl: ttl}
}

func usageKey(studentID string) string {
	return "usage:" + studentID
}

// Fetch loads the tracker, returning nil when the student has none yet.
func (s *RedisUsageStore) Fetch(ctx context.Context, studentID string) (*models.StudentUsage, error) {
	raw, err := s.client.Get(ctx, usageKey(studentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch usage for %s: %w", studentID, err)
	}
	var usage models.StudentUsage
	if err := json.Unmarshal(raw, &usage); err != nil {
		return nil, fmt.Errorf("unmarshal usage for %s: %w", studentID, err)
	}
	return &usage, nil
}

// Save replaces the tracker.
func (s *RedisUsageStore) Save(ctx context.Context, studentID string, usage *models.StudentUsage) error {
	payload, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("marshal usage for %s: %w", studentID, err)
	}
	if err := s.client.Set(ctx, usageKey(studentID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save usage for %s: %w", studentID, err)
	}
	return nil
}

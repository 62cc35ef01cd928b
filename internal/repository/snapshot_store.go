package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// SnapshotQueueItem is the payload pushed to the snapshot worker queue.
type SnapshotQueueItem struct {
	SessionID string          `json:"session_id"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// RedisSnapshotStore implements session.SnapshotStore on Redis, with a
// PostgreSQL failover on cache miss. Every write also queues the record for
// durable persistence by the snapshot worker.
type RedisSnapshotStore struct {
	rdb         *redis.Client
	sessionRepo *ExamSessionRepository
}

// NewRedisSnapshotStore creates a new RedisSnapshotStore.
func NewRedisSnapshotStore(rdb *redis.Client, sessionRepo *ExamSessionRepository) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb, sessionRepo: sessionRepo}
}

// Read returns the stored snapshot, or (nil, nil) when none exists. A Redis
// miss falls back to the PostgreSQL copy and self-heals the cache.
func (s *RedisSnapshotStore) Read(ctx context.Context, sessionID uuid.UUID) (*session.Snapshot, error) {
	key := config.CacheKey.SessionSnapshotKey(sessionID.String())

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Cache miss: maybe evicted. The durable copy is the fallback.
		raw, err = s.sessionRepo.GetDurableSnapshot(ctx, sessionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("durable snapshot fallback: %w", err)
		}
		// Self-heal so the next read is fast.
		_ = s.rdb.Set(ctx, key, raw, 0)
	} else if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Write stores the snapshot in Redis and queues it for durable persistence.
func (s *RedisSnapshotStore) Write(ctx context.Context, sessionID uuid.UUID, snap *session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := config.CacheKey.SessionSnapshotKey(sessionID.String())
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}

	item, _ := json.Marshal(SnapshotQueueItem{
		SessionID: sessionID.String(),
		Snapshot:  raw,
	})
	s.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, item)
	return nil
}

// Delete removes the Redis copy. The durable PostgreSQL row is cleared by
// the result worker once the final result lands.
func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	key := config.CacheKey.SessionSnapshotKey(sessionID.String())
	return s.rdb.Del(ctx, key).Err()
}

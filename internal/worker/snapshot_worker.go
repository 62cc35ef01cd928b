package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/repository"
)

// SnapshotWorker consumes persist_snapshots_queue and UPSERTs session
// snapshots to PostgreSQL. The Redis copy is the hot path; this durable copy
// is what a session restore falls back to when the cache is gone.
type SnapshotWorker struct {
	sessionRepo *repository.ExamSessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSnapshotWorker creates a new SnapshotWorker.
func NewSnapshotWorker(sessionRepo *repository.ExamSessionRepository, rdb *redis.Client, log zerolog.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "snapshot_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SnapshotWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SnapshotWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistSnapshotsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var item repository.SnapshotQueueItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistSnapshot(ctx, &item); err != nil {
		w.log.Error().Err(err).
			Str("session_id", item.SessionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *SnapshotWorker) persistSnapshot(ctx context.Context, item *repository.SnapshotQueueItem) error {
	sessionID, err := uuid.Parse(item.SessionID)
	if err != nil {
		return err
	}
	return w.sessionRepo.UpsertDurableSnapshot(ctx, sessionID, item.Snapshot)
}

// drain processes all remaining items in the queue before shutdown.
func (w *SnapshotWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSnapshotsQueue).Result()
		if err != nil {
			break
		}

		var item repository.SnapshotQueueItem
		if err := json.Unmarshal([]byte(result), &item); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistSnapshot(ctx, &item); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

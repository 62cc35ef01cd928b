package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/repository"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue and writes graded results to
// PostgreSQL in batches. Grading happens in RAM at submit time; this worker
// only makes it durable and clears the snapshot state that is no longer
// needed.
type ResultWorker struct {
	pool        *pgxpool.Pool
	sessionRepo *repository.ExamSessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(pool *pgxpool.Pool, sessionRepo *repository.ExamSessionRepository, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool:        pool,
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "result_worker").Logger(),
	}
}

type resultPayload struct {
	SessionID string        `json:"session_id"`
	Result    *model.Result `json:"result"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*resultPayload, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p resultPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if p.Result == nil {
				w.log.Error().Str("session_id", p.SessionID).Msg("Payload missing result")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch Update Wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*resultPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdateResults(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// After successful result updates → drop snapshots that no longer matter.
	w.bulkClearSnapshots(ctx, batch)
}

// ----------------------------------------------------------------
// BULK PostgreSQL UPDATE using UNNEST + alias
// ----------------------------------------------------------------

func (w *ResultWorker) bulkUpdateResults(ctx context.Context, batch []*resultPayload) error {
	n := len(batch)

	sessionIDs := make([]uuid.UUID, 0, n)
	results := make([][]byte, 0, n)
	finishedAts := make([]time.Time, n)

	now := time.Now()
	for i, p := range batch {
		sID, err := uuid.Parse(p.SessionID)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(p.Result)
		if err != nil {
			return err
		}
		sessionIDs = append(sessionIDs, sID)
		results = append(results, raw)
		finishedAts[i] = now
	}

	query := `
		UPDATE exam_sessions AS s
		SET status = 'SUBMITTED',
		    result = t.result,
		    finished_at = t.finished_at
		FROM (
			SELECT
				u.session_id,
				u.result,
				u.finished_at
			FROM UNNEST(
				$1::uuid[],
				$2::jsonb[],
				$3::timestamptz[]
			) AS u (session_id, result, finished_at)
		) AS t
		WHERE s.id = t.session_id
	`

	_, err := w.pool.Exec(ctx, query, sessionIDs, results, finishedAts)
	return err
}

// ----------------------------------------------------------------
// BULK cleanup of durable and cached snapshots
// ----------------------------------------------------------------

func (w *ResultWorker) bulkClearSnapshots(ctx context.Context, batch []*resultPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		sID, err := uuid.Parse(p.SessionID)
		if err != nil {
			continue
		}
		if err := w.sessionRepo.DeleteDurableSnapshot(ctx, sID); err != nil {
			w.log.Warn().Err(err).Str("session_id", p.SessionID).Msg("Durable snapshot cleanup failed")
		}
		pipe.Del(ctx, config.CacheKey.SessionSnapshotKey(p.SessionID))
	}

	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// FALLBACK single update
// ----------------------------------------------------------------

func (w *ResultWorker) persistSingle(ctx context.Context, p *resultPayload) error {
	sID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}
	return w.sessionRepo.Complete(ctx, sID, p.Result)
}

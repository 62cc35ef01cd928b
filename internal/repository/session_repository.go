package repository

import (
	"context"
	"time"

	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// GetByExamAndStudent retrieves a session for a specific exam-student combination.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status, result
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.Result)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new exam session (student starts the test).
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// Complete marks a session as submitted with its final result.
func (r *ExamSessionRepository) Complete(ctx context.Context, sessionID uuid.UUID, result *model.Result) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, result = $2, finished_at = $3
		 WHERE id = $4`,
		model.SessionStatusSubmitted, result, now, sessionID)
	return err
}

// ListByStudent retrieves all sessions for a given student.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status, result
		 FROM exam_sessions
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.Result); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpsertDurableSnapshot stores a session's progress snapshot in PostgreSQL.
// Written by the snapshot worker so progress survives Redis eviction.
func (r *ExamSessionRepository) UpsertDurableSnapshot(ctx context.Context, sessionID uuid.UUID, snapshot []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_snapshots (session_id, snapshot)
		 VALUES ($1, $2)
		 ON CONFLICT (session_id) DO UPDATE
		 SET snapshot = EXCLUDED.snapshot, updated_at = NOW()`,
		sessionID, snapshot)
	return err
}

// GetDurableSnapshot reads the PostgreSQL copy of a session's snapshot.
func (r *ExamSessionRepository) GetDurableSnapshot(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT snapshot FROM session_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// DeleteDurableSnapshot removes the PostgreSQL snapshot after submission.
func (r *ExamSessionRepository) DeleteDurableSnapshot(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	return err
}

package repository

import (
	"context"

	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, duration_minutes, instructions, question_count, status, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Subject, &e.DurationMinutes, &e.Instructions, &e.QuestionCount, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPublished retrieves all exams visible in the student lobby.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, subject, duration_minutes, instructions, question_count, status, created_at, updated_at
		 FROM exams
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Subject, &e.DurationMinutes, &e.Instructions, &e.QuestionCount, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, subject, duration_minutes, instructions, question_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Subject, e.DurationMinutes, e.Instructions, e.QuestionCount, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// UpdateStatus changes an exam's lifecycle status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

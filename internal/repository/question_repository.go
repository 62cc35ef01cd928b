package repository

import (
	"context"
	"fmt"

	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves an exam's questions in palette order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, text, options, correct_answer, difficulty, order_num
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Options, &q.CorrectAnswer, &q.Difficulty, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceForExam swaps an exam's full question set in one transaction and
// keeps the exam's question_count in sync.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for i, q := range questions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (id, exam_id, text, options, correct_answer, difficulty, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, examID, q.Text, q.Options, q.CorrectAnswer, q.Difficulty, i,
		); err != nil {
			return fmt.Errorf("insert question %d: %w", q.ID, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exams SET question_count = $1, updated_at = NOW() WHERE id = $2`,
		len(questions), examID,
	); err != nil {
		return fmt.Errorf("update question count: %w", err)
	}

	return tx.Commit(ctx)
}

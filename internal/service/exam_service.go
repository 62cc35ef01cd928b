package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam is not published")
)

// ExamService handles exam business logic and Redis caching.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// ListPublished returns the exams visible in the student lobby.
func (s *ExamService) ListPublished(ctx context.Context) ([]model.Exam, error) {
	return s.examRepo.ListPublished(ctx)
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// Publish changes exam status to PUBLISHED and caches the payload in Redis.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// WarmExamCache loads an exam's student payload and duration from PostgreSQL
// into Redis. Used by Publish and PrewarmAllCaches.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Build student-facing payload (without correct answers).
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = q.ForStudent()
	}

	payload := model.ExamPayload{
		ExamID:       exam.ID,
		Title:        exam.Title,
		Subject:      exam.Subject,
		Duration:     exam.DurationMinutes,
		Instructions: exam.Instructions,
		Questions:    studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID.String()), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(exam.ID.String()), exam.DurationMinutes, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
// This prevents any lazy-loading race conditions under thundering herd traffic.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPayload retrieves the cached student payload from Redis.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExamNotPublished
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

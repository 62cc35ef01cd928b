package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/repository"
	"github.com/eduprep/mocktest-backend/internal/scoring"
	"github.com/eduprep/mocktest-backend/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrExamNotAvailable = errors.New("exam is not available")
	ErrSessionNotFound  = errors.New("no session for this exam")
	ErrSessionSubmitted = errors.New("session already submitted")
	ErrResultNotReady   = errors.New("result not available yet")
)

// ResultQueueItem is the payload pushed to the result worker queue.
type ResultQueueItem struct {
	SessionID string        `json:"session_id"`
	Result    *model.Result `json:"result"`
}

// ResultReport is the result plus its chart-ready aggregates, handed to the
// results view.
type ResultReport struct {
	ExamID          uuid.UUID                  `json:"exam_id"`
	Result          *model.Result              `json:"result"`
	SummaryChart    []model.SummaryChartItem   `json:"summary_chart"`
	DifficultyChart []model.DifficultyChartRow `json:"difficulty_chart"`
}

// SessionService owns the live session engines: starting (the instructions
// gate), resuming after reload or restart, routing mutations, and the
// submission hand-off to the result worker.
type SessionService struct {
	sessionRepo  *repository.ExamSessionRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	snapshots    session.SnapshotStore
	registry     *session.Registry
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.ExamSessionRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	snapshots session.SnapshotStore,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		snapshots:    snapshots,
		registry:     session.NewRegistry(),
		rdb:          rdb,
		log:          log.With().Str("component", "session_service").Logger(),
	}
}

// Start passes the instructions gate for a student: creates the session row
// if this is a fresh attempt (idempotent under concurrent joins), builds the
// engine, restores any snapshot and starts the countdown.
func (s *SessionService) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.SessionState, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, ErrExamNotAvailable
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	if sess == nil {
		sess = &model.ExamSession{ExamID: examID, StudentID: studentID}
		if err := s.sessionRepo.Create(ctx, sess); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Concurrent start from another device won the insert.
				sess, err = s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
				if err != nil {
					return nil, fmt.Errorf("concurrent start, fetch failed: %w", err)
				}
			} else {
				return nil, fmt.Errorf("create session: %w", err)
			}
		}
		// Cache the start time so resume reads skip PostgreSQL.
		startKey := config.CacheKey.SessionStartKey(examID.String(), studentID)
		if err := s.rdb.Set(ctx, startKey, sess.StartedAt.Unix(), 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache start time")
		}
	}

	if sess.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionSubmitted
	}

	eng, err := s.ensureEngine(ctx, exam, sess)
	if err != nil {
		return nil, err
	}

	state := eng.View()
	state.ExamID = examID
	return &state, nil
}

// EngineFor returns the live engine for a student's in-progress session,
// rebuilding it from the persisted snapshot after a server restart.
func (s *SessionService) EngineFor(ctx context.Context, examID uuid.UUID, studentID int) (*session.Engine, error) {
	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if eng, ok := s.registry.Get(sess.ID); ok {
		// A registered engine that already graded is terminal even while
		// the database write is still in flight.
		if eng.Result() != nil {
			return nil, ErrSessionSubmitted
		}
		return eng, nil
	}

	if sess.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionSubmitted
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return s.ensureEngine(ctx, exam, sess)
}

// ensureEngine returns the registered engine for the session, constructing
// and starting one when none is live. The registry guarantees at most one
// running countdown per session.
func (s *SessionService) ensureEngine(ctx context.Context, exam *model.Exam, sess *model.ExamSession) (*session.Engine, error) {
	if eng, ok := s.registry.Get(sess.ID); ok {
		return eng, nil
	}

	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	sessionID := sess.ID
	eng, err := session.NewEngine(session.Config{
		SessionID:        sessionID,
		Questions:        questions,
		TimeLimitSeconds: exam.DurationMinutes * 60,
		ElapsedSeconds:   s.elapsedSeconds(ctx, exam.ID, sess),
		Snapshots:        s.snapshots,
		OnSubmit: func(result *model.Result, trigger session.SubmitTrigger) {
			s.handleSubmitted(sessionID, result, trigger)
		},
		Log: s.log,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	eng, created := s.registry.Put(sessionID, eng)
	if created {
		if err := eng.Begin(ctx); err != nil {
			s.registry.Remove(sessionID)
			return nil, fmt.Errorf("begin session: %w", err)
		}
	}
	return eng, nil
}

// elapsedSeconds computes how long the session clock has been running, from
// the Redis-cached start time with a PostgreSQL failover and self-heal.
func (s *SessionService) elapsedSeconds(ctx context.Context, examID uuid.UUID, sess *model.ExamSession) int {
	startUnix := sess.StartedAt.Unix()
	startKey := config.CacheKey.SessionStartKey(examID.String(), sess.StudentID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if errors.Is(err, redis.Nil) {
		// Evicted or legacy session: re-seed from the database row.
		_ = s.rdb.Set(ctx, startKey, startUnix, 0)
	} else if err == nil {
		if parsed, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			startUnix = parsed
		}
	}

	elapsed := int(time.Now().Unix() - startUnix)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// handleSubmitted runs once per session, after the engine has frozen state
// and cleared its snapshot: it queues the result for durable persistence.
func (s *SessionService) handleSubmitted(sessionID uuid.UUID, result *model.Result, trigger session.SubmitTrigger) {
	item, err := json.Marshal(ResultQueueItem{
		SessionID: sessionID.String(),
		Result:    result,
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Marshal result payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, item).Err(); err != nil {
		// Queue push failed: persist synchronously so the result is not lost.
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Result queue push failed, persisting directly")
		if err := s.sessionRepo.Complete(ctx, sessionID, result); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Direct result persist failed")
		}
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("trigger", string(trigger)).
		Int("score", result.Score).
		Msg("Result queued")
}

// State returns the live view for an in-progress session, or the terminal
// view for a submitted one. Covers the page-reload path.
func (s *SessionService) State(ctx context.Context, examID uuid.UUID, studentID int) (*model.SessionState, error) {
	eng, err := s.EngineFor(ctx, examID, studentID)
	if errors.Is(err, ErrSessionSubmitted) {
		sess, repoErr := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
		if repoErr != nil {
			return nil, fmt.Errorf("get session: %w", repoErr)
		}
		if sess.Status == model.SessionStatusSubmitted {
			s.registry.Remove(sess.ID) // Lazy cleanup once the row is terminal.
		}
		return &model.SessionState{
			SessionID: sess.ID,
			ExamID:    examID,
			Status:    model.SessionStatusSubmitted,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	state := eng.View()
	state.ExamID = examID
	return &state, nil
}

// SelectAnswer records an option for the current question.
func (s *SessionService) SelectAnswer(ctx context.Context, examID uuid.UUID, studentID, optionIndex int) (*model.SessionState, error) {
	return s.mutate(ctx, examID, studentID, func(eng *session.Engine) {
		eng.SelectAnswer(ctx, optionIndex)
	})
}

// ToggleMarkForReview flips the review flag on the current question.
func (s *SessionService) ToggleMarkForReview(ctx context.Context, examID uuid.UUID, studentID int) (*model.SessionState, error) {
	return s.mutate(ctx, examID, studentID, func(eng *session.Engine) {
		eng.ToggleMarkForReview(ctx)
	})
}

// GoToQuestion jumps the palette pointer.
func (s *SessionService) GoToQuestion(ctx context.Context, examID uuid.UUID, studentID, index int) (*model.SessionState, error) {
	return s.mutate(ctx, examID, studentID, func(eng *session.Engine) {
		eng.GoToQuestion(ctx, index)
	})
}

// Next advances to the following question.
func (s *SessionService) Next(ctx context.Context, examID uuid.UUID, studentID int) (*model.SessionState, error) {
	return s.mutate(ctx, examID, studentID, func(eng *session.Engine) {
		eng.Next(ctx)
	})
}

// Previous steps back one question.
func (s *SessionService) Previous(ctx context.Context, examID uuid.UUID, studentID int) (*model.SessionState, error) {
	return s.mutate(ctx, examID, studentID, func(eng *session.Engine) {
		eng.Previous(ctx)
	})
}

func (s *SessionService) mutate(ctx context.Context, examID uuid.UUID, studentID int, fn func(*session.Engine)) (*model.SessionState, error) {
	eng, err := s.EngineFor(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	fn(eng)

	state := eng.View()
	state.ExamID = examID
	return &state, nil
}

// Submit finalizes the session on user confirmation. Submitting an already
// submitted session is answered with the stored result, not an error.
func (s *SessionService) Submit(ctx context.Context, examID uuid.UUID, studentID int) (*ResultReport, error) {
	eng, err := s.EngineFor(ctx, examID, studentID)
	if errors.Is(err, ErrSessionSubmitted) {
		return s.Result(ctx, examID, studentID)
	}
	if err != nil {
		return nil, err
	}

	result, _ := eng.Submit(ctx)
	if result == nil {
		return nil, ErrResultNotReady
	}
	return s.report(examID, result), nil
}

// Result returns the report for a submitted session. The live engine is
// preferred because the queued database write may still be in flight.
func (s *SessionService) Result(ctx context.Context, examID uuid.UUID, studentID int) (*ResultReport, error) {
	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if eng, ok := s.registry.Get(sess.ID); ok {
		if result := eng.Result(); result != nil {
			return s.report(examID, result), nil
		}
		return nil, ErrResultNotReady
	}

	if sess.Status != model.SessionStatusSubmitted || sess.Result == nil {
		return nil, ErrResultNotReady
	}
	return s.report(examID, sess.Result), nil
}

func (s *SessionService) report(examID uuid.UUID, result *model.Result) *ResultReport {
	return &ResultReport{
		ExamID:          examID,
		Result:          result,
		SummaryChart:    scoring.SummaryChart(result),
		DifficultyChart: scoring.DifficultyChart(result),
	}
}

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the session lifecycle. Transitions are one-way:
// NotStarted → InProgress → Submitted.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateSubmitted  State = "SUBMITTED"
)

// SubmitTrigger records what caused the submission.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

var (
	ErrNoQuestions    = errors.New("session requires at least one question")
	ErrNoTimeLimit    = errors.New("session requires a positive time limit")
	ErrAlreadyStarted = errors.New("session already started")
)

// Config assembles an engine. Snapshots, NewTicker and OnSubmit are optional.
// ElapsedSeconds seeds the countdown on resume: the clock keeps running by
// wall time while no engine is live, so a rebuilt session starts from
// TimeLimitSeconds - ElapsedSeconds.
type Config struct {
	SessionID        uuid.UUID
	Questions        []model.Question
	TimeLimitSeconds int
	ElapsedSeconds   int
	Snapshots        SnapshotStore
	NewTicker        TickerFactory
	OnSubmit         func(result *model.Result, trigger SubmitTrigger)
	Log              zerolog.Logger
}

// Engine is one attempt at a timed mock test: the answer/review state, the
// current-question pointer, the countdown, and the submission pipeline.
// All callers are serialized through one mutex — handlers and the tick
// goroutine never observe partial state.
type Engine struct {
	mu sync.Mutex

	id        uuid.UUID
	questions []model.Question
	timeLimit int

	current  int
	selected []int
	marked   []bool
	timeLeft int
	state    State

	snapshots SnapshotStore
	newTicker TickerFactory
	onSubmit  func(*model.Result, SubmitTrigger)
	log       zerolog.Logger

	stopTick chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	result   *model.Result
}

// NewEngine validates the configuration and builds a NotStarted engine.
// Empty question banks are rejected here so scoring never divides by zero.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if cfg.TimeLimitSeconds <= 0 {
		return nil, ErrNoTimeLimit
	}

	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = WallClockTicker
	}

	selected := make([]int, len(cfg.Questions))
	for i := range selected {
		selected[i] = model.Unanswered
	}

	timeLeft := cfg.TimeLimitSeconds - cfg.ElapsedSeconds
	if timeLeft < 0 {
		timeLeft = 0
	}

	return &Engine{
		id:        cfg.SessionID,
		questions: cfg.Questions,
		timeLimit: cfg.TimeLimitSeconds,
		selected:  selected,
		marked:    make([]bool, len(cfg.Questions)),
		timeLeft:  timeLeft,
		state:     StateNotStarted,
		snapshots: cfg.Snapshots,
		newTicker: newTicker,
		onSubmit:  cfg.OnSubmit,
		log:       cfg.Log.With().Str("component", "session_engine").Str("session_id", cfg.SessionID.String()).Logger(),
		stopTick:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Begin passes the instructions gate: restores any stored snapshot, moves the
// session to InProgress and starts the countdown. The snapshot read happens
// exactly once; a missing, stale or malformed record falls back entirely to
// defaults.
func (e *Engine) Begin(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateNotStarted {
		return ErrAlreadyStarted
	}

	e.restoreLocked(ctx)
	e.state = StateInProgress

	// A resumed session whose clock already ran out is submitted on the
	// spot instead of waiting for a tick.
	if e.timeLeft <= 0 {
		e.timeLeft = 0
		result := e.finishLocked(ctx)
		e.mu.Unlock()
		e.emit(result, TriggerTimeout)
		e.mu.Lock()
		return nil
	}

	go e.run(e.newTicker())
	return nil
}

func (e *Engine) restoreLocked(ctx context.Context) {
	if e.snapshots == nil {
		return
	}

	snap, err := e.snapshots.Read(ctx, e.id)
	if err != nil {
		e.log.Warn().Err(err).Msg("Snapshot read failed, starting fresh")
		return
	}
	if !snap.valid(len(e.questions)) {
		if snap != nil {
			e.log.Warn().Int("version", snap.Version).Msg("Discarding unusable snapshot")
		}
		return
	}
	for i, ans := range snap.SelectedAnswers {
		if ans != model.Unanswered && (ans < 0 || ans >= len(e.questions[i].Options)) {
			e.log.Warn().Int("question", i).Int("answer", ans).Msg("Discarding snapshot with out-of-range answer")
			return
		}
	}

	e.current = snap.CurrentQuestion
	copy(e.selected, snap.SelectedAnswers)
	copy(e.marked, snap.MarkedForReview)
}

// run consumes ticker deliveries until submission.
func (e *Engine) run(ticker Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-e.stopTick:
			return
		case <-ticker.C():
			if e.tick() {
				return
			}
		}
	}
}

// tick decrements the countdown by one second and fires the auto-submit at
// the zero boundary. The <= 0 comparison tolerates a skipped tick. Returns
// true once the session is submitted.
func (e *Engine) tick() bool {
	e.mu.Lock()
	if e.state != StateInProgress {
		e.mu.Unlock()
		return true
	}

	e.timeLeft--
	if e.timeLeft <= 0 {
		e.timeLeft = 0
		result := e.finishLocked(context.Background())
		e.mu.Unlock()
		e.emit(result, TriggerTimeout)
		return true
	}
	e.mu.Unlock()
	return false
}

// SelectAnswer records an option for the current question. The caller
// contract guarantees the option index is valid for the question; a session
// that is not in progress ignores the call.
func (e *Engine) SelectAnswer(ctx context.Context, optionIndex int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInProgress {
		return
	}
	e.selected[e.current] = optionIndex
	e.persistLocked(ctx)
}

// ToggleMarkForReview flips the review flag on the current question.
func (e *Engine) ToggleMarkForReview(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInProgress {
		return
	}
	e.marked[e.current] = !e.marked[e.current]
	e.persistLocked(ctx)
}

// GoToQuestion jumps the current-question pointer. Out-of-range indices are
// clamped rather than rejected.
func (e *Engine) GoToQuestion(ctx context.Context, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInProgress {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(e.questions)-1 {
		index = len(e.questions) - 1
	}
	e.current = index
	e.persistLocked(ctx)
}

// Next advances to the following question; no wraparound at the end.
func (e *Engine) Next(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInProgress || e.current >= len(e.questions)-1 {
		return
	}
	e.current++
	e.persistLocked(ctx)
}

// Previous steps back one question; no wraparound at the start.
func (e *Engine) Previous(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInProgress || e.current <= 0 {
		return
	}
	e.current--
	e.persistLocked(ctx)
}

// Submit finalizes the session on explicit confirmation. Once submitted,
// further calls return the existing result without repeating side effects.
func (e *Engine) Submit(ctx context.Context) (*model.Result, bool) {
	e.mu.Lock()
	if e.state != StateInProgress {
		result := e.result
		e.mu.Unlock()
		return result, false
	}

	result := e.finishLocked(ctx)
	e.mu.Unlock()
	e.emit(result, TriggerManual)
	return result, true
}

// finishLocked runs the submission side effects in order: freeze, stop the
// countdown, clear the persistence cache, compute the result. Callers hold
// the mutex and the InProgress state has been checked, so this runs at most
// once per engine.
func (e *Engine) finishLocked(ctx context.Context) *model.Result {
	e.state = StateSubmitted
	e.stopOnce.Do(func() { close(e.stopTick) })

	if e.snapshots != nil {
		if err := e.snapshots.Delete(ctx, e.id); err != nil {
			e.log.Warn().Err(err).Msg("Snapshot delete failed")
		}
	}

	e.result = scoring.Evaluate(e.questions, e.selected, e.timeLimit-e.timeLeft)
	close(e.done)
	return e.result
}

func (e *Engine) emit(result *model.Result, trigger SubmitTrigger) {
	e.log.Info().
		Str("trigger", string(trigger)).
		Int("score", result.Score).
		Msg("Session submitted")
	if e.onSubmit != nil {
		e.onSubmit(result, trigger)
	}
}

// persistLocked mirrors the resumable state into the snapshot store.
// Best-effort: a write failure degrades resumability, never the session.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.snapshots == nil {
		return
	}

	snap := &Snapshot{
		Version:         SnapshotVersion,
		CurrentQuestion: e.current,
		SelectedAnswers: append([]int(nil), e.selected...),
		MarkedForReview: append([]bool(nil), e.marked...),
	}
	if err := e.snapshots.Write(ctx, e.id, snap); err != nil {
		e.log.Warn().Err(err).Msg("Snapshot write failed")
	}
}

// View returns a consistent copy of the live state.
func (e *Engine) View() model.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	answered := 0
	for _, ans := range e.selected {
		if ans != model.Unanswered {
			answered++
		}
	}

	status := model.SessionStatusInProgress
	if e.state == StateSubmitted {
		status = model.SessionStatusSubmitted
	}

	return model.SessionState{
		SessionID:       e.id,
		CurrentQuestion: e.current,
		SelectedAnswers: append([]int(nil), e.selected...),
		MarkedForReview: append([]bool(nil), e.marked...),
		TimeLeft:        e.timeLeft,
		AnsweredCount:   answered,
		Status:          status,
	}
}

// Done is closed once the session is submitted, whether manually or by the
// countdown. Result is valid after Done is closed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Result returns the computed report, or nil while the session is live.
func (e *Engine) Result() *model.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

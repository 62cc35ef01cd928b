package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduprep/mocktest-backend/internal/model"
)

// manualTicker is driven by the test instead of the wall clock.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

// tick delivers one tick and gives up if the engine stopped listening.
func (m *manualTicker) tick() {
	select {
	case m.ch <- time.Now():
	case <-time.After(time.Second):
	}
}

// countingStore wraps MemorySnapshotStore and counts calls.
type countingStore struct {
	*MemorySnapshotStore
	mu      sync.Mutex
	writes  int
	deletes int
}

func newCountingStore() *countingStore {
	return &countingStore{MemorySnapshotStore: NewMemorySnapshotStore()}
}

func (c *countingStore) Write(ctx context.Context, sessionID uuid.UUID, snap *Snapshot) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.MemorySnapshotStore.Write(ctx, sessionID, snap)
}

func (c *countingStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.MemorySnapshotStore.Delete(ctx, sessionID)
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Read(context.Context, uuid.UUID) (*Snapshot, error) {
	return nil, errors.New("store down")
}
func (failingStore) Write(context.Context, uuid.UUID, *Snapshot) error {
	return errors.New("store down")
}
func (failingStore) Delete(context.Context, uuid.UUID) error {
	return errors.New("store down")
}

func testQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:            i + 1,
			Text:          "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Difficulty:    model.DifficultyMedium,
		}
	}
	return qs
}

func testConfig(n, limit int) Config {
	return Config{
		SessionID:        uuid.New(),
		Questions:        testQuestions(n),
		TimeLimitSeconds: limit,
		Log:              zerolog.Nop(),
	}
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(Config{TimeLimitSeconds: 60, Log: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = NewEngine(Config{Questions: testQuestions(3), Log: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrNoTimeLimit)
}

func TestBeginOnlyOnce(t *testing.T) {
	cfg := testConfig(3, 60)
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)

	require.NoError(t, eng.Begin(context.Background()))
	assert.ErrorIs(t, eng.Begin(context.Background()), ErrAlreadyStarted)
}

func TestInitialView(t *testing.T) {
	cfg := testConfig(4, 120)
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(context.Background()))

	view := eng.View()
	assert.Equal(t, 0, view.CurrentQuestion)
	assert.Equal(t, 120, view.TimeLeft)
	assert.Equal(t, 0, view.AnsweredCount)
	assert.Equal(t, model.SessionStatusInProgress, view.Status)
	assert.Equal(t, []int{model.Unanswered, model.Unanswered, model.Unanswered, model.Unanswered}, view.SelectedAnswers)
	assert.Equal(t, []bool{false, false, false, false}, view.MarkedForReview)
}

func TestNavigationBounds(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(3, 60)
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	// Previous at the first question is a no-op.
	eng.Previous(ctx)
	assert.Equal(t, 0, eng.View().CurrentQuestion)

	eng.Next(ctx)
	eng.Next(ctx)
	assert.Equal(t, 2, eng.View().CurrentQuestion)

	// Next at the last question is a no-op.
	eng.Next(ctx)
	assert.Equal(t, 2, eng.View().CurrentQuestion)

	// Jumps clamp instead of rejecting.
	eng.GoToQuestion(ctx, -5)
	assert.Equal(t, 0, eng.View().CurrentQuestion)
	eng.GoToQuestion(ctx, 99)
	assert.Equal(t, 2, eng.View().CurrentQuestion)
	eng.GoToQuestion(ctx, 1)
	assert.Equal(t, 1, eng.View().CurrentQuestion)
}

func TestSelectAnswerAndToggleMark(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(3, 60)
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	eng.SelectAnswer(ctx, 2)
	view := eng.View()
	assert.Equal(t, 2, view.SelectedAnswers[0])
	assert.Equal(t, 1, view.AnsweredCount)

	// Changing the answer does not change the answered count.
	eng.SelectAnswer(ctx, 0)
	view = eng.View()
	assert.Equal(t, 0, view.SelectedAnswers[0])
	assert.Equal(t, 1, view.AnsweredCount)

	eng.ToggleMarkForReview(ctx)
	assert.True(t, eng.View().MarkedForReview[0])
	eng.ToggleMarkForReview(ctx)
	assert.False(t, eng.View().MarkedForReview[0])
}

func TestManualSubmit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(4, 600)
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	var triggers []SubmitTrigger
	cfg.OnSubmit = func(_ *model.Result, trigger SubmitTrigger) {
		triggers = append(triggers, trigger)
	}

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	// Answer the first two questions correctly.
	eng.SelectAnswer(ctx, 0)
	eng.Next(ctx)
	eng.SelectAnswer(ctx, 1)

	result, submitted := eng.Submit(ctx)
	require.True(t, submitted)
	require.NotNil(t, result)
	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 2, result.AnsweredQuestions)
	assert.Equal(t, 2, result.NotAnswered)

	select {
	case <-eng.Done():
	default:
		t.Fatal("done channel not closed after submit")
	}

	assert.Equal(t, []SubmitTrigger{TriggerManual}, triggers)
	assert.Same(t, result, eng.Result())
}

func TestSubmitAtMostOnce(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(2, 60)
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	emits := 0
	cfg.OnSubmit = func(*model.Result, SubmitTrigger) { emits++ }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	first, submitted := eng.Submit(ctx)
	require.True(t, submitted)

	second, submitted := eng.Submit(ctx)
	assert.False(t, submitted)
	assert.Same(t, first, second)
	assert.Equal(t, 1, emits)
}

func TestMutationsIgnoredAfterSubmit(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	cfg := testConfig(3, 60)
	cfg.Snapshots = store
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	eng.SelectAnswer(ctx, 1)
	_, submitted := eng.Submit(ctx)
	require.True(t, submitted)

	frozen := eng.View()
	eng.SelectAnswer(ctx, 2)
	eng.ToggleMarkForReview(ctx)
	eng.GoToQuestion(ctx, 2)
	eng.Next(ctx)
	eng.Previous(ctx)

	after := eng.View()
	assert.Equal(t, frozen.SelectedAnswers, after.SelectedAnswers)
	assert.Equal(t, frozen.MarkedForReview, after.MarkedForReview)
	assert.Equal(t, frozen.CurrentQuestion, after.CurrentQuestion)
	assert.Equal(t, model.SessionStatusSubmitted, after.Status)

	// The snapshot was cleared at submit and never rewritten.
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.deletes)
	snap, _ := store.Read(ctx, cfg.SessionID)
	assert.Nil(t, snap)
}

func TestCountdownAutoSubmit(t *testing.T) {
	ctx := context.Background()
	ticker := newManualTicker()
	cfg := testConfig(2, 3)
	cfg.NewTicker = func() Ticker { return ticker }

	var trigger SubmitTrigger
	submitted := make(chan struct{})
	cfg.OnSubmit = func(_ *model.Result, tr SubmitTrigger) {
		trigger = tr
		close(submitted)
	}

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	ticker.tick()
	require.Eventually(t, func() bool { return eng.View().TimeLeft == 2 }, time.Second, time.Millisecond)

	ticker.tick()
	require.Eventually(t, func() bool { return eng.View().TimeLeft == 1 }, time.Second, time.Millisecond)

	ticker.tick()
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("countdown did not auto-submit")
	}

	assert.Equal(t, TriggerTimeout, trigger)

	result := eng.Result()
	require.NotNil(t, result)
	assert.Equal(t, 0, result.AnsweredQuestions)
	assert.Equal(t, 2, result.NotAnswered)
	assert.Equal(t, 3, result.TimeSpentSeconds)
	assert.Equal(t, 0, eng.View().TimeLeft)
}

func TestTicksIgnoredAfterSubmit(t *testing.T) {
	ctx := context.Background()
	ticker := newManualTicker()
	cfg := testConfig(2, 60)
	cfg.NewTicker = func() Ticker { return ticker }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	_, ok := eng.Submit(ctx)
	require.True(t, ok)

	// A tick racing the submit must not disturb the frozen clock.
	ticker.tick()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 60, eng.View().TimeLeft)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()
	id := uuid.New()

	cfg := testConfig(3, 120)
	cfg.SessionID = id
	cfg.Snapshots = store
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	eng.SelectAnswer(ctx, 2)
	eng.ToggleMarkForReview(ctx)
	eng.Next(ctx)
	eng.SelectAnswer(ctx, 0)

	// A second engine over the same store resumes exactly where the first
	// one stopped.
	cfg2 := testConfig(3, 120)
	cfg2.SessionID = id
	cfg2.Snapshots = store
	cfg2.NewTicker = func() Ticker { return newManualTicker() }

	resumed, err := NewEngine(cfg2)
	require.NoError(t, err)
	require.NoError(t, resumed.Begin(ctx))

	view := resumed.View()
	assert.Equal(t, 1, view.CurrentQuestion)
	assert.Equal(t, []int{2, 0, model.Unanswered}, view.SelectedAnswers)
	assert.Equal(t, []bool{true, false, false}, view.MarkedForReview)
	assert.Equal(t, 2, view.AnsweredCount)
}

func TestCorruptSnapshotDiscarded(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	cases := map[string]*Snapshot{
		"wrong version": {
			Version:         99,
			CurrentQuestion: 1,
			SelectedAnswers: []int{0, 1, 2},
			MarkedForReview: []bool{false, false, false},
		},
		"length mismatch": {
			Version:         SnapshotVersion,
			CurrentQuestion: 0,
			SelectedAnswers: []int{0},
			MarkedForReview: []bool{false},
		},
		"pointer out of range": {
			Version:         SnapshotVersion,
			CurrentQuestion: 7,
			SelectedAnswers: []int{0, 1, 2},
			MarkedForReview: []bool{false, false, false},
		},
		"answer out of range": {
			Version:         SnapshotVersion,
			CurrentQuestion: 0,
			SelectedAnswers: []int{0, 9, 2},
			MarkedForReview: []bool{false, false, false},
		},
	}

	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			store := NewMemorySnapshotStore()
			require.NoError(t, store.Write(ctx, id, snap))

			cfg := testConfig(3, 60)
			cfg.SessionID = id
			cfg.Snapshots = store
			cfg.NewTicker = func() Ticker { return newManualTicker() }

			eng, err := NewEngine(cfg)
			require.NoError(t, err)
			require.NoError(t, eng.Begin(ctx))

			// Nothing from the stored record survives.
			view := eng.View()
			assert.Equal(t, 0, view.CurrentQuestion)
			assert.Equal(t, 0, view.AnsweredCount)
			assert.Equal(t, []bool{false, false, false}, view.MarkedForReview)
		})
	}
}

func TestStoreFailuresTolerated(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(2, 60)
	cfg.Snapshots = failingStore{}
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(ctx))

	// Every mutation and the submit keep working with the store down.
	eng.SelectAnswer(ctx, 1)
	eng.ToggleMarkForReview(ctx)
	eng.Next(ctx)

	result, submitted := eng.Submit(ctx)
	require.True(t, submitted)
	assert.Equal(t, 1, result.AnsweredQuestions)
}

func TestResumeWithElapsedTime(t *testing.T) {
	cfg := testConfig(2, 600)
	cfg.ElapsedSeconds = 250
	cfg.NewTicker = func() Ticker { return newManualTicker() }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(context.Background()))

	assert.Equal(t, 350, eng.View().TimeLeft)
}

func TestResumeAfterDeadlineSubmitsImmediately(t *testing.T) {
	cfg := testConfig(2, 60)
	cfg.ElapsedSeconds = 600

	var trigger SubmitTrigger
	cfg.OnSubmit = func(_ *model.Result, tr SubmitTrigger) { trigger = tr }

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Begin(context.Background()))

	select {
	case <-eng.Done():
	default:
		t.Fatal("expired resume did not submit")
	}

	assert.Equal(t, TriggerTimeout, trigger)
	assert.Equal(t, model.SessionStatusSubmitted, eng.View().Status)
	assert.Equal(t, 60, eng.Result().TimeSpentSeconds)
}

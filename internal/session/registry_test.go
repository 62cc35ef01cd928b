package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(Config{
		SessionID:        uuid.New(),
		Questions:        testQuestions(2),
		TimeLimitSeconds: 60,
		Log:              zerolog.Nop(),
	})
	require.NoError(t, err)
	return eng
}

func TestRegistryPutFirstWins(t *testing.T) {
	reg := NewRegistry()
	id := uuid.New()

	first := newTestEngine(t)
	second := newTestEngine(t)

	got, stored := reg.Put(id, first)
	assert.True(t, stored)
	assert.Same(t, first, got)

	// A concurrent registration loses to the existing engine.
	got, stored = reg.Put(id, second)
	assert.False(t, stored)
	assert.Same(t, first, got)

	got, ok := reg.Get(id)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	id := uuid.New()

	reg.Put(id, newTestEngine(t))
	reg.Remove(id)

	_, ok := reg.Get(id)
	assert.False(t, ok)

	// Removing an unknown id is a no-op.
	reg.Remove(uuid.New())
}

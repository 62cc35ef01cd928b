package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotValid(t *testing.T) {
	good := &Snapshot{
		Version:         SnapshotVersion,
		CurrentQuestion: 2,
		SelectedAnswers: []int{0, 1, 2},
		MarkedForReview: []bool{true, false, true},
	}
	assert.True(t, good.valid(3))

	var nilSnap *Snapshot
	assert.False(t, nilSnap.valid(3))

	stale := *good
	stale.Version = SnapshotVersion + 1
	assert.False(t, stale.valid(3))

	short := *good
	short.SelectedAnswers = []int{0}
	assert.False(t, short.valid(3))

	negative := *good
	negative.CurrentQuestion = -1
	assert.False(t, negative.valid(3))

	past := *good
	past.CurrentQuestion = 3
	assert.False(t, past.valid(3))
}

func TestMemorySnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()
	id := uuid.New()

	// Missing record reads as nil, not an error.
	snap, err := store.Read(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, snap)

	written := &Snapshot{
		Version:         SnapshotVersion,
		CurrentQuestion: 1,
		SelectedAnswers: []int{3, 0},
		MarkedForReview: []bool{false, true},
	}
	require.NoError(t, store.Write(ctx, id, written))

	snap, err = store.Read(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, written, snap)

	require.NoError(t, store.Delete(ctx, id))
	snap, err = store.Read(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

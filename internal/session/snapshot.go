package session

import (
	"context"

	"github.com/google/uuid"
)

// SnapshotVersion is bumped whenever the snapshot layout changes. A stored
// record with a different version is discarded entirely on restore.
const SnapshotVersion = 1

// Snapshot is the persisted subset of session state used to resume progress
// after a reload. One versioned record per session id — never split across
// keys, so a restore is all-or-nothing.
type Snapshot struct {
	Version         int    `json:"version"`
	CurrentQuestion int    `json:"current_question"`
	SelectedAnswers []int  `json:"selected_answers"`
	MarkedForReview []bool `json:"marked_for_review"`
}

// SnapshotStore is the persistence cache backend. Implementations must treat
// a missing record as (nil, nil), not an error. Failures are tolerated by
// the engine: the session keeps working in-memory with degraded resumability.
type SnapshotStore interface {
	Read(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error)
	Write(ctx context.Context, sessionID uuid.UUID, snap *Snapshot) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// valid reports whether the snapshot can seed a session over the given
// question count. Any mismatch rejects the whole record.
func (s *Snapshot) valid(questionCount int) bool {
	if s == nil || s.Version != SnapshotVersion {
		return false
	}
	if len(s.SelectedAnswers) != questionCount || len(s.MarkedForReview) != questionCount {
		return false
	}
	return s.CurrentQuestion >= 0 && s.CurrentQuestion < questionCount
}

// MemorySnapshotStore is an in-process SnapshotStore used in tests and as a
// fallback when Redis is unavailable.
type MemorySnapshotStore struct {
	records map[uuid.UUID]Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{records: make(map[uuid.UUID]Snapshot)}
}

func (m *MemorySnapshotStore) Read(_ context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	rec, ok := m.records[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemorySnapshotStore) Write(_ context.Context, sessionID uuid.UUID, snap *Snapshot) error {
	m.records[sessionID] = *snap
	return nil
}

func (m *MemorySnapshotStore) Delete(_ context.Context, sessionID uuid.UUID) error {
	delete(m.records, sessionID)
	return nil
}

package pathway

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrHistoryRewritten = errors.New("event history may only be appended to")

// MemoryStore is a thread-safe in-process Store used by tests and the
// memory backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*TrackedEntity
	order   []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*TrackedEntity)}
}

func (s *MemoryStore) Create(_ context.Context, e *TrackedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, ok := s.records[e.ID]; ok {
		return ErrAlreadyExists
	}
	e.Version = 1
	s.records[e.ID] = e.Clone()
	s.order = append(s.order, e.ID)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*TrackedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *MemoryStore) GetByPatient(_ context.Context, patientID string) (*TrackedEntity, error) {
	want := NormalizeID(patientID)
	if want == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var archived *TrackedEntity
	for _, id := range s.order {
		e := s.records[id]
		if NormalizeID(e.PatientID) != want {
			continue
		}
		if !e.Archived {
			return e.Clone(), nil
		}
		archived = e
	}
	if archived != nil {
		return archived.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, includeArchived bool) ([]*TrackedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TrackedEntity, 0, len(s.order))
	for _, id := range s.order {
		e := s.records[id]
		if e.Archived && !includeArchived {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, e *TrackedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[e.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != e.Version {
		return ErrVersionConflict
	}
	if len(e.Events) < len(cur.Events) {
		return ErrHistoryRewritten
	}
	for i := range cur.Events {
		if cur.Events[i] != e.Events[i] {
			return ErrHistoryRewritten
		}
	}
	e.Version++
	s.records[e.ID] = e.Clone()
	return nil
}

package mdt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ptl/internal/domain/pathway"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Discussion
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[uuid.UUID]*Discussion)}
}

func (m *MemoryRepo) Create(_ context.Context, d *Discussion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.records[d.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Discussion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryRepo) Update(_ context.Context, d *Discussion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[d.ID]; !ok {
		return ErrNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	m.records[d.ID] = &cp
	return nil
}

func (m *MemoryRepo) ListByPatient(_ context.Context, patientID string) ([]*Discussion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Discussion
	for _, d := range m.records {
		if pathway.SamePatient(d.PatientID, patientID) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MeetingDate.Equal(out[j].MeetingDate) {
			return out[i].MeetingDate.Before(out[j].MeetingDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ptl/internal/domain/pathway"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Book(ctx context.Context, a *Appointment, actor string) error {
	a.PatientID = pathway.NormalizeID(a.PatientID)
	if a.PatientID == "" {
		return pathway.Invalidf("patient_id must contain digits")
	}
	if a.Date.IsZero() {
		return pathway.Invalidf("date is required")
	}
	if strings.TrimSpace(a.Type) == "" {
		return pathway.Invalidf("type is required")
	}
	if strings.TrimSpace(actor) == "" {
		return pathway.Invalidf("actor is required")
	}
	if a.Status == "" {
		a.Status = StatusBooked
	}
	if !validStatuses[a.Status] {
		return pathway.Invalidf("invalid status: %s", a.Status)
	}
	a.BookedBy = actor
	return s.repo.Create(ctx, a)
}

// UpdateStatus changes an appointment's status. A non-zero date reschedules it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, date time.Time) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, pathway.Invalidf("invalid status: %s", status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	if !date.IsZero() {
		a.Date = date
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	id := pathway.NormalizeID(patientID)
	if id == "" {
		return nil, nil
	}
	return s.repo.ListByPatient(ctx, id)
}

// AppointmentsFor serves the cross-module resolver.
func (s *Service) AppointmentsFor(ctx context.Context, patientID string) ([]Summary, error) {
	items, err := s.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(items))
	for _, a := range items {
		out = append(out, a.Summary())
	}
	return out, nil
}

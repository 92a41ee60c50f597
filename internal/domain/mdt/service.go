package mdt

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/ptl/internal/domain/pathway"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) RecordDiscussion(ctx context.Context, d *Discussion, actor string) error {
	d.PatientID = pathway.NormalizeID(d.PatientID)
	if d.PatientID == "" {
		return pathway.Invalidf("patient_id must contain digits")
	}
	if d.MeetingDate.IsZero() {
		return pathway.Invalidf("meeting_date is required")
	}
	if strings.TrimSpace(d.Specialty) == "" {
		return pathway.Invalidf("specialty is required")
	}
	if strings.TrimSpace(actor) == "" {
		return pathway.Invalidf("actor is required")
	}
	d.RecordedBy = actor
	d.Decided = d.Outcome != nil && strings.TrimSpace(*d.Outcome) != ""
	return s.repo.Create(ctx, d)
}

// RecordOutcome sets the team's decision and marks the discussion decided.
func (s *Service) RecordOutcome(ctx context.Context, id uuid.UUID, outcome string) (*Discussion, error) {
	if strings.TrimSpace(outcome) == "" {
		return nil, pathway.Invalidf("outcome is required")
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Outcome = &outcome
	d.Decided = true
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*Discussion, error) {
	id := pathway.NormalizeID(patientID)
	if id == "" {
		return nil, nil
	}
	return s.repo.ListByPatient(ctx, id)
}

// DiscussionsFor serves the cross-module resolver.
func (s *Service) DiscussionsFor(ctx context.Context, patientID string) ([]Summary, error) {
	items, err := s.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(items))
	for _, d := range items {
		out = append(out, d.Summary())
	}
	return out, nil
}

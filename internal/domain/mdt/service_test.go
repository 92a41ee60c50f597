package mdt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestService() *Service {
	return NewService(NewMemoryRepo())
}

func TestService_RecordDiscussion(t *testing.T) {
	svc := newTestService()
	d := &Discussion{
		PatientID:   "943 476 5919",
		MeetingDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Specialty:   "colorectal",
	}
	if err := svc.RecordDiscussion(context.Background(), d, "dr.jones"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if d.PatientID != "9434765919" {
		t.Errorf("expected normalized patient id, got %q", d.PatientID)
	}
	if d.Decided {
		t.Error("expected undecided discussion without outcome")
	}
	if d.RecordedBy != "dr.jones" {
		t.Errorf("expected recorded_by dr.jones, got %q", d.RecordedBy)
	}
}

func TestService_RecordDiscussion_WithOutcomeIsDecided(t *testing.T) {
	svc := newTestService()
	outcome := "refer for surgery"
	d := &Discussion{PatientID: "123", MeetingDate: time.Now(), Specialty: "lung", Outcome: &outcome}
	if err := svc.RecordDiscussion(context.Background(), d, "dr.jones"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Decided {
		t.Error("expected decided when outcome is present")
	}
}

func TestService_RecordDiscussion_Validation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name  string
		d     Discussion
		actor string
	}{
		{"no digits", Discussion{PatientID: "abc", MeetingDate: time.Now(), Specialty: "lung"}, "a"},
		{"no date", Discussion{PatientID: "1", Specialty: "lung"}, "a"},
		{"no specialty", Discussion{PatientID: "1", MeetingDate: time.Now()}, "a"},
		{"no actor", Discussion{PatientID: "1", MeetingDate: time.Now(), Specialty: "lung"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.d
			if err := svc.RecordDiscussion(context.Background(), &d, tt.actor); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestService_RecordOutcome(t *testing.T) {
	svc := newTestService()
	d := &Discussion{PatientID: "123", MeetingDate: time.Now(), Specialty: "lung"}
	svc.RecordDiscussion(context.Background(), d, "a")

	got, err := svc.RecordOutcome(context.Background(), d.ID, "chemotherapy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Decided || got.Outcome == nil || *got.Outcome != "chemotherapy" {
		t.Errorf("expected decided with outcome, got %+v", got)
	}

	if _, err := svc.RecordOutcome(context.Background(), uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.RecordOutcome(context.Background(), d.ID, " "); err == nil {
		t.Error("expected error for blank outcome")
	}
}

func TestService_DiscussionsFor_MatchesNormalizedID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	early := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	svc.RecordDiscussion(ctx, &Discussion{PatientID: "943-476-5919", MeetingDate: late, Specialty: "lung"}, "a")
	svc.RecordDiscussion(ctx, &Discussion{PatientID: "9434765919", MeetingDate: early, Specialty: "breast"}, "a")
	svc.RecordDiscussion(ctx, &Discussion{PatientID: "111", MeetingDate: early, Specialty: "skin"}, "a")

	got, err := svc.DiscussionsFor(ctx, "943 476 5919")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 discussions, got %d", len(got))
	}
	if !got[0].MeetingDate.Equal(early) || got[0].Specialty != "breast" {
		t.Errorf("expected earliest meeting first, got %+v", got[0])
	}
}

func TestService_DiscussionsFor_EmptyIDMatchesNothing(t *testing.T) {
	svc := newTestService()
	svc.RecordDiscussion(context.Background(), &Discussion{PatientID: "1", MeetingDate: time.Now(), Specialty: "lung"}, "a")
	got, err := svc.DiscussionsFor(context.Background(), "---")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

// Package notification delivers breach-tier alerts to one or more sinks
// through an asynchronous, bounded dispatcher.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Alert is a tier transition observed by the re-evaluator.
type Alert struct {
	ID           uuid.UUID `json:"id"`
	EntityID     uuid.UUID `json:"entity_id"`
	PatientID    string    `json:"patient_id"`
	List         string    `json:"list"`
	OldTier      string    `json:"old_tier"`
	NewTier      string    `json:"new_tier"`
	DaysToBreach int       `json:"days_to_breach"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Sender is one delivery channel for alerts.
type Sender interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Notifier accepts alerts for delivery. Notify must not block; it reports
// false when the alert could not be queued.
type Notifier interface {
	Notify(a Alert) bool
}

package mdt

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("mdt discussion not found")

type Repository interface {
	Create(ctx context.Context, d *Discussion) error
	GetByID(ctx context.Context, id uuid.UUID) (*Discussion, error)
	Update(ctx context.Context, d *Discussion) error
	// ListByPatient takes a normalized identifier and returns discussions in
	// meeting date order.
	ListByPatient(ctx context.Context, patientID string) ([]*Discussion, error)
}

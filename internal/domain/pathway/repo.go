package pathway

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the entities of one pathway list. Implementations must keep
// event insertion order and round-trip Extensions untouched.
type Store interface {
	Create(ctx context.Context, e *TrackedEntity) error
	GetByID(ctx context.Context, id uuid.UUID) (*TrackedEntity, error)
	// GetByPatient matches on the normalized identifier, preferring a live
	// entry over an archived one.
	GetByPatient(ctx context.Context, patientID string) (*TrackedEntity, error)
	List(ctx context.Context, includeArchived bool) ([]*TrackedEntity, error)
	// Save fails with ErrVersionConflict unless e.Version matches the stored
	// version; on success it increments e.Version.
	Save(ctx context.Context, e *TrackedEntity) error
}

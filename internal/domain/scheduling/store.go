package scheduling

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// SlotStore persists slots. Transition is the only mutator of an existing
// slot besides DeleteOpen and the CompleteElapsed sweep; all three are
// conditional on the stored status.
type SlotStore interface {
	// Create inserts s as given. It fails with apperr.ErrConflict when a live
	// slot already has the same range or overlaps it.
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// FindByDoctorAndDateRange returns slots of every status with from <= date <= to,
	// ordered by date and start time.
	FindByDoctorAndDateRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]*Slot, error)
	FindOpenByDoctor(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]*Slot, error)
	// FindByOccupant returns slots occupied by patientID or by any of dependentIDs.
	FindByOccupant(ctx context.Context, patientID string, dependentIDs []uuid.UUID) ([]*Slot, error)
	// Transition applies req atomically and returns the updated slot. It fails
	// with apperr.ErrNotFound when the slot is absent and apperr.ErrConflict
	// when its status or version no longer match.
	Transition(ctx context.Context, req TransitionRequest) (*Slot, error)
	// DeleteOpen removes an open slot; any other status is a conflict.
	DeleteOpen(ctx context.Context, id uuid.UUID) error
	// CompleteElapsed moves reserved slots whose end is not after now to
	// completed and returns how many changed.
	CompleteElapsed(ctx context.Context, now time.Time, loc *time.Location) (int64, error)
}

package dependent

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores d and the creator's guardianship atomically.
	Create(ctx context.Context, d *Dependent, g *Guardianship) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dependent, error)
	Update(ctx context.Context, d *Dependent) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForGuardian(ctx context.Context, userID string) ([]*Dependent, error)
	ListIDsForGuardian(ctx context.Context, userID string) ([]uuid.UUID, error)
	AddGuardian(ctx context.Context, g *Guardianship) error
	IsGuardian(ctx context.Context, userID string, dependentID uuid.UUID) (bool, error)
}

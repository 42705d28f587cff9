package directory

import (
	"context"

	"github.com/google/uuid"
)

// SearchFilter holds already-trimmed terms; an empty term matches everything.
type SearchFilter struct {
	Query    string
	Location string
}

type Repository interface {
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Doctor, int, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error)
	ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityWindow, error)
	ReplaceAvailability(ctx context.Context, doctorID uuid.UUID, windows []AvailabilityWindow) error
	ListCities(ctx context.Context, query string) ([]City, error)
	ListSpecialties(ctx context.Context, query string) ([]Specialty, error)
}

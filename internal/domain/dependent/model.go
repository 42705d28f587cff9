package dependent

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// LegalGuardianRole is recorded for the user who creates a dependent.
const LegalGuardianRole = "Responsable légal"

// Dependent is a person whose appointments are managed by one or more guardians.
type Dependent struct {
	ID         uuid.UUID  `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	BirthDate  civil.Date `json:"birth_date"`
	BirthPlace *string    `json:"birth_place,omitempty"`
	Sex        *string    `json:"sex,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Address    *string    `json:"address,omitempty"`
	PostalCode *string    `json:"postal_code,omitempty"`
	City       *string    `json:"city,omitempty"`
	PhotoURL   *string    `json:"photo_url,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Guardianship struct {
	UserID      string    `json:"user_id"`
	DependentID uuid.UUID `json:"dependent_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

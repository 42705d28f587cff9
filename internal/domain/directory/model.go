package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/AmalSalhi1/BeedicalApp/pkg/pagination"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

type City struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Specialty struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Doctor struct {
	ID                   uuid.UUID `json:"id"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	CityID               uuid.UUID `json:"city_id"`
	City                 string    `json:"city"`
	Specialties          []string  `json:"specialties"`
	Address              *string   `json:"address,omitempty"`
	PostalCode           *string   `json:"postal_code,omitempty"`
	Phone                *string   `json:"phone,omitempty"`
	Latitude             *float64  `json:"latitude,omitempty"`
	Longitude            *float64  `json:"longitude,omitempty"`
	AcceptingNewPatients bool      `json:"accepting_new_patients"`
	Sector               int       `json:"sector"`
	ImageURL             *string   `json:"image_url,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DisplayName is the "Dr. First Last" form shown in search results.
func (d *Doctor) DisplayName() string {
	return "Dr. " + d.FirstName + " " + d.LastName
}

// AvailabilityWindow is one recurring weekly opening of a doctor.
type AvailabilityWindow struct {
	Weekday time.Weekday        `json:"weekday"`
	Start   timeofday.TimeOfDay `json:"start"`
	End     timeofday.TimeOfDay `json:"end"`
}

type DoctorDetail struct {
	*Doctor
	Availability []AvailabilityWindow `json:"availability"`
}

type SearchQuery struct {
	Query    string
	Location string
	Page     int
	PageSize int
}

type SearchResult = pagination.Response[*Doctor]

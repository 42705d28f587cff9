package scheduling

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/AmalSalhi1/BeedicalApp/internal/domain/dependent"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/directory"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
)

// DoctorLookup resolves the doctor shown with an appointment.
type DoctorLookup interface {
	Doctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

// DependentLookup resolves the dependent an appointment is for.
type DependentLookup interface {
	ByID(ctx context.Context, id uuid.UUID) (*dependent.Dependent, error)
}

type DoctorSummary struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	City        string    `json:"city"`
	Specialties []string  `json:"specialties"`
}

func summarize(d *directory.Doctor) *DoctorSummary {
	return &DoctorSummary{
		ID:          d.ID,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		City:        d.City,
		Specialties: d.Specialties,
	}
}

// Appointment is a booked slot with its doctor and, for dependent bookings,
// the dependent.
type Appointment struct {
	*Slot
	Doctor    *DoctorSummary       `json:"doctor,omitempty"`
	Dependent *dependent.Dependent `json:"dependent,omitempty"`
}

// AppointmentFilter narrows an actor's appointments. Zero fields match
// every appointment.
type AppointmentFilter struct {
	Status   SlotStatus
	DoctorID uuid.UUID
	Date     civil.Date
}

func (f AppointmentFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return apperr.Validation("invalid status %q", f.Status)
	}
	return nil
}

// matches compares against s.Status, which callers set to the effective status.
func (f AppointmentFilter) matches(s *Slot) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.DoctorID != uuid.Nil && s.DoctorID != f.DoctorID {
		return false
	}
	if f.Date.IsValid() && s.Date != f.Date {
		return false
	}
	return true
}

// appointmentDetails memoizes lookups over one response.
type appointmentDetails struct {
	doctors    DoctorLookup
	dependents DependentLookup
	seenDocs   map[uuid.UUID]*DoctorSummary
	seenDeps   map[uuid.UUID]*dependent.Dependent
}

func newAppointmentDetails(doctors DoctorLookup, dependents DependentLookup) *appointmentDetails {
	return &appointmentDetails{
		doctors:    doctors,
		dependents: dependents,
		seenDocs:   make(map[uuid.UUID]*DoctorSummary),
		seenDeps:   make(map[uuid.UUID]*dependent.Dependent),
	}
}

// attach builds the appointment for s. A doctor or dependent that no longer
// exists is left out rather than failing the read.
func (d *appointmentDetails) attach(ctx context.Context, s *Slot) (*Appointment, error) {
	a := &Appointment{Slot: s}

	if d.doctors != nil {
		doc, ok := d.seenDocs[s.DoctorID]
		if !ok {
			found, err := d.doctors.Doctor(ctx, s.DoctorID)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
			case err != nil:
				return nil, err
			default:
				doc = summarize(found)
			}
			d.seenDocs[s.DoctorID] = doc
		}
		a.Doctor = doc
	}

	if d.dependents != nil && s.Occupant.DependentID != nil {
		id := *s.Occupant.DependentID
		dep, ok := d.seenDeps[id]
		if !ok {
			found, err := d.dependents.ByID(ctx, id)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
			case err != nil:
				return nil, err
			default:
				dep = found
			}
			d.seenDeps[id] = dep
		}
		a.Dependent = dep
	}
	return a, nil
}

package scheduling

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

type SlotStatus string

const (
	StatusOpen      SlotStatus = "open"
	StatusReserved  SlotStatus = "reserved"
	StatusCancelled SlotStatus = "cancelled"
	StatusCompleted SlotStatus = "completed"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusReserved, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// transitions lists every legal status change. reserved->reserved is an
// occupant reassignment.
var transitions = map[SlotStatus][]SlotStatus{
	StatusOpen:     {StatusReserved},
	StatusReserved: {StatusReserved, StatusCancelled, StatusCompleted},
}

func CanTransition(from, to SlotStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OccupantKind string

const (
	OccupantNone      OccupantKind = "none"
	OccupantPatient   OccupantKind = "patient"
	OccupantDependent OccupantKind = "dependent"
)

// Occupant is who a slot is reserved for. A patient occupant is the booking
// user; a dependent occupant also records the guardian who booked.
type Occupant struct {
	Kind        OccupantKind `json:"kind"`
	PatientID   string       `json:"patient_id,omitempty"`
	DependentID *uuid.UUID   `json:"dependent_id,omitempty"`
	GuardianID  string       `json:"guardian_id,omitempty"`
}

func NoOccupant() Occupant { return Occupant{Kind: OccupantNone} }

func PatientOccupant(patientID string) Occupant {
	return Occupant{Kind: OccupantPatient, PatientID: patientID}
}

func DependentOccupant(dependentID uuid.UUID, guardianID string) Occupant {
	return Occupant{Kind: OccupantDependent, DependentID: &dependentID, GuardianID: guardianID}
}

func (o Occupant) IsNone() bool { return o.Kind == "" || o.Kind == OccupantNone }

func (o Occupant) Validate() error {
	switch o.Kind {
	case "", OccupantNone:
		if o.PatientID != "" || o.DependentID != nil {
			return apperr.Validation("empty occupant must not reference anyone")
		}
	case OccupantPatient:
		if o.PatientID == "" || o.DependentID != nil {
			return apperr.Validation("patient occupant requires patient_id only")
		}
	case OccupantDependent:
		if o.DependentID == nil || o.PatientID != "" {
			return apperr.Validation("dependent occupant requires dependent_id only")
		}
	default:
		return apperr.Validation("unknown occupant kind %q", o.Kind)
	}
	return nil
}

// Slot is one bookable half-open interval [StartTime, EndTime) on Date for a
// doctor. Date and times are wall-clock values in the configured zone.
type Slot struct {
	ID        uuid.UUID           `json:"id"`
	DoctorID  uuid.UUID           `json:"doctor_id"`
	Date      civil.Date          `json:"date"`
	StartTime timeofday.TimeOfDay `json:"start_time"`
	EndTime   timeofday.TimeOfDay `json:"end_time"`
	Status    SlotStatus          `json:"status"`
	Occupant  Occupant            `json:"occupant"`
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s *Slot) Start(loc *time.Location) time.Time { return s.StartTime.On(s.Date, loc) }

func (s *Slot) End(loc *time.Location) time.Time { return s.EndTime.On(s.Date, loc) }

// Started reports whether the slot has begun at now.
func (s *Slot) Started(now time.Time, loc *time.Location) bool {
	return !now.Before(s.Start(loc))
}

// Elapsed reports whether the slot is over at now.
func (s *Slot) Elapsed(now time.Time, loc *time.Location) bool {
	return !now.Before(s.End(loc))
}

// EffectiveStatus is the stored status with reserved slots that are over
// reported as completed, ahead of the sweep.
func (s *Slot) EffectiveStatus(now time.Time, loc *time.Location) SlotStatus {
	if s.Status == StatusReserved && s.Elapsed(now, loc) {
		return StatusCompleted
	}
	return s.Status
}

// Overlaps reports whether s intersects [start,end) on date.
func (s *Slot) Overlaps(date civil.Date, start, end timeofday.TimeOfDay) bool {
	return s.Date == date && timeofday.Overlaps(s.StartTime, s.EndTime, start, end)
}

// Live slots take part in the uniqueness and overlap rules.
func (s *Slot) Live() bool { return s.Status != StatusCancelled }

func (s *Slot) Validate() error {
	if s.DoctorID == uuid.Nil {
		return apperr.Validation("doctor_id is required")
	}
	if !s.Date.IsValid() {
		return apperr.Validation("date is required")
	}
	if !s.StartTime.Valid() || !s.EndTime.Valid() || s.StartTime >= s.EndTime {
		return apperr.Validation("start_time must be before end_time")
	}
	if !s.Status.Valid() {
		return apperr.Validation("invalid status %q", s.Status)
	}
	return s.Occupant.Validate()
}

// TransitionRequest is a conditional status change. It applies only while the
// slot is in From and, when ExpectedVersion is non-zero, at that version.
type TransitionRequest struct {
	SlotID          uuid.UUID
	From            SlotStatus
	To              SlotStatus
	ExpectedVersion int
	Occupant        Occupant
}

// OccupantRequest is the caller's choice of who a booking is for.
type OccupantRequest struct {
	Kind        OccupantKind `json:"kind"`
	DependentID *uuid.UUID   `json:"dependent_id,omitempty"`
}

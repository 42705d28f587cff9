package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/auth"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/db"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/metrics"
)

// GuardianChecker answers guardianship questions for the coordinator.
type GuardianChecker interface {
	IsGuardianOf(ctx context.Context, actorID string, dependentID uuid.UUID) (bool, error)
	GuardedIDs(ctx context.Context, actorID string) ([]uuid.UUID, error)
}

const defaultWriteTimeout = 3 * time.Second

// Coordinator books and cancels slots. Every mutation is a single conditional
// Transition on the slot's current status and version.
type Coordinator struct {
	store        SlotStore
	guardians    GuardianChecker
	loc          *time.Location
	now          func() time.Time
	writeTimeout time.Duration
	doctors      DoctorLookup
	dependents   DependentLookup
	metrics      *metrics.BookingMetrics
	logger       zerolog.Logger
}

func NewCoordinator(store SlotStore, guardians GuardianChecker, loc *time.Location, writeTimeout time.Duration, m *metrics.BookingMetrics, logger zerolog.Logger) *Coordinator {
	if loc == nil {
		loc = time.UTC
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Coordinator{
		store:        store,
		guardians:    guardians,
		loc:          loc,
		now:          time.Now,
		writeTimeout: writeTimeout,
		metrics:      m,
		logger:       logger,
	}
}

// WithDetails makes appointment reads carry the doctor and the dependent.
func (c *Coordinator) WithDetails(doctors DoctorLookup, dependents DependentLookup) *Coordinator {
	c.doctors = doctors
	c.dependents = dependents
	return c
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.Code(err)
}

func (c *Coordinator) observe(op string, err error) {
	c.metrics.ObserveOperation(op, outcome(err))
}

// transition issues the conditional write under the write timeout. Once
// issued the write is detached from the caller's cancellation; a timeout or a
// dropped connection is reported as apperr.ErrUnknown.
func (c *Coordinator) transition(ctx context.Context, op string, req TransitionRequest) (*Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	start := time.Now()
	s, err := c.store.Transition(wctx, req)
	c.metrics.ObserveWrite(op, time.Since(start))
	if err != nil && (wctx.Err() != nil || db.IsConnectionError(err)) {
		c.logger.Warn().Err(err).Str("slot_id", req.SlotID.String()).Str("operation", op).Msg("slot write outcome unknown")
		return nil, fmt.Errorf("%s slot %s: %v: %w", op, req.SlotID, err, apperr.ErrUnknown)
	}
	return s, err
}

// resolveOccupant turns the caller's request into an occupant the actor may book for.
func (c *Coordinator) resolveOccupant(ctx context.Context, actorID string, req OccupantRequest) (Occupant, error) {
	switch req.Kind {
	case "", "self", OccupantPatient:
		if req.DependentID != nil {
			return Occupant{}, apperr.Validation("dependent_id is only allowed for dependent bookings")
		}
		return PatientOccupant(actorID), nil
	case OccupantDependent:
		if req.DependentID == nil || *req.DependentID == uuid.Nil {
			return Occupant{}, apperr.Validation("dependent_id is required")
		}
		ok, err := c.guardians.IsGuardianOf(ctx, actorID, *req.DependentID)
		if err != nil {
			return Occupant{}, err
		}
		if !ok {
			return Occupant{}, fmt.Errorf("actor does not guard dependent %s: %w", *req.DependentID, apperr.ErrUnauthorized)
		}
		return DependentOccupant(*req.DependentID, actorID), nil
	default:
		return Occupant{}, apperr.Validation("unknown occupant kind %q", req.Kind)
	}
}

// authorizeOccupant checks that actorID is the occupant patient or a current
// guardian of the occupant dependent.
func (c *Coordinator) authorizeOccupant(ctx context.Context, actorID string, o Occupant) error {
	switch {
	case o.Kind == OccupantPatient && o.PatientID == actorID:
		return nil
	case o.Kind == OccupantDependent && o.DependentID != nil:
		ok, err := c.guardians.IsGuardianOf(ctx, actorID, *o.DependentID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("actor is not the occupant of this slot: %w", apperr.ErrUnauthorized)
}

func requireActor(actorID string) error {
	if actorID == "" {
		return fmt.Errorf("missing actor: %w", apperr.ErrUnauthorized)
	}
	return nil
}

// Book reserves an open slot for the actor or one of the actor's dependents.
// Errors are checked in order: apperr.ErrNotFound, apperr.ErrUnauthorized,
// then apperr.ErrSlotUnavailable, which includes losing the race to another booking.
func (c *Coordinator) Book(ctx context.Context, slotID uuid.UUID, actorID string, req OccupantRequest) (s *Slot, err error) {
	defer func() { c.observe("book", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	cur, err := c.store.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	occ, err := c.resolveOccupant(ctx, actorID, req)
	if err != nil {
		return nil, err
	}
	if cur.Status != StatusOpen {
		return nil, fmt.Errorf("slot is %s: %w", cur.Status, apperr.ErrSlotUnavailable)
	}
	if cur.Started(c.now(), c.loc) {
		return nil, fmt.Errorf("slot has already started: %w", apperr.ErrSlotUnavailable)
	}

	s, err = c.transition(ctx, "book", TransitionRequest{
		SlotID:          slotID,
		From:            StatusOpen,
		To:              StatusReserved,
		ExpectedVersion: cur.Version,
		Occupant:        occ,
	})
	if errors.Is(err, apperr.ErrConflict) {
		return nil, fmt.Errorf("slot was booked by someone else: %w", apperr.ErrSlotUnavailable)
	}
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("slot_id", slotID.String()).Str("actor", actorID).Str("occupant", string(occ.Kind)).Msg("slot booked")
	return s, nil
}

// Cancel releases a reserved slot. The state check comes before the
// authorization check, so a slot that is not reserved reports
// apperr.ErrInvalidState to every actor. The slot is not reopened.
func (c *Coordinator) Cancel(ctx context.Context, slotID uuid.UUID, actorID string) (s *Slot, err error) {
	defer func() { c.observe("cancel", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	cur, err := c.store.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if st := cur.EffectiveStatus(c.now(), c.loc); st != StatusReserved {
		return nil, fmt.Errorf("cannot cancel a %s slot: %w", st, apperr.ErrInvalidState)
	}
	if err := c.authorizeOccupant(ctx, actorID, cur.Occupant); err != nil {
		return nil, err
	}

	s, err = c.transition(ctx, "cancel", TransitionRequest{
		SlotID:          slotID,
		From:            StatusReserved,
		To:              StatusCancelled,
		ExpectedVersion: cur.Version,
		Occupant:        NoOccupant(),
	})
	if errors.Is(err, apperr.ErrConflict) {
		return nil, fmt.Errorf("slot changed while cancelling: %w", apperr.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("slot_id", slotID.String()).Str("actor", actorID).Msg("slot cancelled")
	return s, nil
}

// ReassignOccupant changes who a reserved slot is for before it starts. The
// actor must be allowed on both the current and the new occupant.
func (c *Coordinator) ReassignOccupant(ctx context.Context, slotID uuid.UUID, actorID string, req OccupantRequest) (s *Slot, err error) {
	defer func() { c.observe("reassign", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	cur, err := c.store.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if cur.Status != StatusReserved || cur.Started(c.now(), c.loc) {
		return nil, fmt.Errorf("only upcoming reserved slots can be reassigned: %w", apperr.ErrInvalidState)
	}
	if err := c.authorizeOccupant(ctx, actorID, cur.Occupant); err != nil {
		return nil, err
	}
	occ, err := c.resolveOccupant(ctx, actorID, req)
	if err != nil {
		return nil, err
	}

	return c.transition(ctx, "reassign", TransitionRequest{
		SlotID:          slotID,
		From:            StatusReserved,
		To:              StatusReserved,
		ExpectedVersion: cur.Version,
		Occupant:        occ,
	})
}

// Get returns an appointment the actor occupies or guards. Admins may read
// any slot.
func (c *Coordinator) Get(ctx context.Context, slotID uuid.UUID, actorID string) (*Appointment, error) {
	s, err := c.store.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(ctx, "admin") {
		if err := c.authorizeOccupant(ctx, actorID, s.Occupant); err != nil {
			return nil, err
		}
	}
	s.Status = s.EffectiveStatus(c.now(), c.loc)
	return newAppointmentDetails(c.doctors, c.dependents).attach(ctx, s)
}

// ListForActor returns the appointments of the actor and of every dependent
// the actor guards that match f, ordered by date and start time. The filter
// never widens the result beyond those occupants.
func (c *Coordinator) ListForActor(ctx context.Context, actorID string, f AppointmentFilter) ([]*Appointment, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ids, err := c.guardians.GuardedIDs(ctx, actorID)
	if err != nil {
		return nil, err
	}
	slots, err := c.store.FindByOccupant(ctx, actorID, ids)
	if err != nil {
		return nil, err
	}

	now := c.now()
	details := newAppointmentDetails(c.doctors, c.dependents)
	out := make([]*Appointment, 0, len(slots))
	for _, s := range slots {
		s.Status = s.EffectiveStatus(now, c.loc)
		if !f.matches(s) {
			continue
		}
		a, err := details.attach(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Availability groups the doctor's bookable slots between from and to by
// date ("2006-01-02"). Slots that have already started are left out.
func (c *Coordinator) Availability(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (map[string][]*Slot, error) {
	if !from.IsValid() || !to.IsValid() || to.Before(from) {
		return nil, apperr.Validation("invalid date range")
	}
	slots, err := c.store.FindOpenByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	now := c.now()
	byDate := make(map[string][]*Slot)
	for _, s := range slots {
		if s.Started(now, c.loc) {
			continue
		}
		key := s.Date.String()
		byDate[key] = append(byDate[key], s)
	}
	return byDate, nil
}

// Today is the current date in the coordinator's zone.
func (c *Coordinator) Today() civil.Date {
	return civil.DateOf(c.now().In(c.loc))
}

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/domain/directory"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/metrics"
)

// TemplateSource supplies doctors' weekly availability templates.
type TemplateSource interface {
	AvailabilityTemplate(ctx context.Context, doctorID uuid.UUID) ([]directory.AvailabilityWindow, error)
	ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error)
}

type PublishResult struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
}

// Publisher turns weekly templates into open slots. It never deletes or
// rewrites a slot implicitly; stale open slots go through PruneStale.
type Publisher struct {
	store     SlotStore
	templates TemplateSource
	loc       *time.Location
	now       func() time.Time
	metrics   *metrics.BookingMetrics
	logger    zerolog.Logger
}

func NewPublisher(store SlotStore, templates TemplateSource, loc *time.Location, m *metrics.BookingMetrics, logger zerolog.Logger) *Publisher {
	if loc == nil {
		loc = time.UTC
	}
	return &Publisher{store: store, templates: templates, loc: loc, now: time.Now, metrics: m, logger: logger}
}

// Today is the current date in the publisher's zone.
func (p *Publisher) Today() civil.Date {
	return civil.DateOf(p.now().In(p.loc))
}

func horizon(from civil.Date, days int) (civil.Date, error) {
	if !from.IsValid() {
		return civil.Date{}, apperr.Validation("from must be a valid date")
	}
	if days <= 0 {
		return civil.Date{}, apperr.Validation("days must be positive, got %d", days)
	}
	return from.AddDays(days - 1), nil
}

func occupied(existing []*Slot, date civil.Date, w directory.AvailabilityWindow) bool {
	for _, s := range existing {
		if s.Overlaps(date, w.Start, w.End) {
			return true
		}
	}
	return false
}

// Publish creates an open slot for every template window on the dates
// [from, from+days) unless a slot of any status already covers or overlaps
// it. Windows that have already started are left out. Running it again over
// the same horizon creates nothing.
func (p *Publisher) Publish(ctx context.Context, doctorID uuid.UUID, from civil.Date, days int) (*PublishResult, error) {
	to, err := horizon(from, days)
	if err != nil {
		return nil, err
	}
	windows, err := p.templates.AvailabilityTemplate(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	existing, err := p.store.FindByDoctorAndDateRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}

	res := &PublishResult{DoctorID: doctorID}
	now := p.now()
	for date := from; !date.After(to); date = date.AddDays(1) {
		weekday := date.In(time.UTC).Weekday()
		for _, w := range windows {
			if w.Weekday != weekday {
				continue
			}
			if occupied(existing, date, w) {
				res.Skipped++
				continue
			}
			s := &Slot{
				DoctorID:  doctorID,
				Date:      date,
				StartTime: w.Start,
				EndTime:   w.End,
				Status:    StatusOpen,
				Occupant:  NoOccupant(),
			}
			if s.Started(now, p.loc) {
				continue
			}
			err := p.store.Create(ctx, s)
			if errors.Is(err, apperr.ErrConflict) {
				res.Skipped++
				continue
			}
			if err != nil {
				p.metrics.AddPublished(res.Created)
				return res, err
			}
			res.Created++
			existing = append(existing, s)
		}
	}

	p.metrics.AddPublished(res.Created)
	p.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("from", from.String()).
		Int("days", days).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("availability published")
	return res, nil
}

// PublishAll publishes every doctor's horizon. A failing doctor is logged and
// reported in the joined error; the others still run.
func (p *Publisher) PublishAll(ctx context.Context, from civil.Date, days int) ([]*PublishResult, error) {
	ids, err := p.templates.ListDoctorIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	results := make([]*PublishResult, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := p.Publish(ctx, id, from, days)
		if err != nil {
			p.logger.Error().Err(err).Str("doctor_id", id.String()).Msg("publish failed")
			errs = append(errs, fmt.Errorf("doctor %s: %w", id, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// PruneStale deletes open slots in the horizon whose range no longer matches a
// window of the doctor's template. Slots in any other status are kept, as are
// slots booked while the prune runs.
func (p *Publisher) PruneStale(ctx context.Context, doctorID uuid.UUID, from civil.Date, days int) (int, error) {
	to, err := horizon(from, days)
	if err != nil {
		return 0, err
	}
	windows, err := p.templates.AvailabilityTemplate(ctx, doctorID)
	if err != nil {
		return 0, fmt.Errorf("load template: %w", err)
	}
	open, err := p.store.FindOpenByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, s := range open {
		if matchesTemplate(s, windows) {
			continue
		}
		err := p.store.DeleteOpen(ctx, s.ID)
		if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	p.logger.Info().Str("doctor_id", doctorID.String()).Int("removed", removed).Msg("stale slots pruned")
	return removed, nil
}

func matchesTemplate(s *Slot, windows []directory.AvailabilityWindow) bool {
	weekday := s.Date.In(time.UTC).Weekday()
	for _, w := range windows {
		if w.Weekday == weekday && w.Start == s.StartTime && w.End == s.EndTime {
			return true
		}
	}
	return false
}

// Reopen publishes a new open slot over a cancelled slot's range. The
// cancelled slot is kept as history.
func (p *Publisher) Reopen(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	old, err := p.store.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if old.Status != StatusCancelled {
		return nil, fmt.Errorf("only cancelled slots can be reopened, slot is %s: %w", old.Status, apperr.ErrInvalidState)
	}
	if old.Started(p.now(), p.loc) {
		return nil, apperr.Validation("slot %s has already started", slotID)
	}
	s := &Slot{
		DoctorID:  old.DoctorID,
		Date:      old.Date,
		StartTime: old.StartTime,
		EndTime:   old.EndTime,
		Status:    StatusOpen,
		Occupant:  NoOccupant(),
	}
	if err := p.store.Create(ctx, s); err != nil {
		return nil, err
	}
	p.metrics.AddPublished(1)
	p.logger.Info().Str("slot_id", s.ID.String()).Str("reopened_from", slotID.String()).Msg("slot reopened")
	return s, nil
}

// Sweep marks reserved slots that are over as completed.
func (p *Publisher) Sweep(ctx context.Context) (int64, error) {
	n, err := p.store.CompleteElapsed(ctx, p.now(), p.loc)
	if err != nil {
		return 0, err
	}
	p.metrics.AddCompleted(n)
	if n > 0 {
		p.logger.Info().Int64("completed", n).Msg("elapsed slots completed")
	}
	return n, nil
}

package scheduling

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/db"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

type storePG struct{ pool db.Pool }

func NewStorePG(pool db.Pool) SlotStore { return &storePG{pool: pool} }

func (r *storePG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const slotCols = `id, doctor_id, slot_date, start_minute, end_minute, status,
	occupant_kind, occupant_patient_id, occupant_dependent_id, occupant_guardian_id,
	version, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s                 Slot
		date              time.Time
		start, end        int
		status, kind      string
		patient, guardian *string
		dependent         *uuid.UUID
	)
	err := row.Scan(&s.ID, &s.DoctorID, &date, &start, &end, &status,
		&kind, &patient, &dependent, &guardian,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Date = civil.DateOf(date)
	s.StartTime = timeofday.TimeOfDay(start)
	s.EndTime = timeofday.TimeOfDay(end)
	s.Status = SlotStatus(status)
	s.Occupant = Occupant{Kind: OccupantKind(kind), DependentID: dependent}
	if patient != nil {
		s.Occupant.PatientID = *patient
	}
	if guardian != nil {
		s.Occupant.GuardianID = *guardian
	}
	return &s, nil
}

func scanSlots(rows pgx.Rows) ([]*Slot, error) {
	defer rows.Close()
	items := []*Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func occupantArgs(o Occupant) (string, *string, *uuid.UUID, *string) {
	if o.IsNone() {
		return string(OccupantNone), nil, nil, nil
	}
	return string(o.Kind), nullString(o.PatientID), o.DependentID, nullString(o.GuardianID)
}

func dateArg(d civil.Date) time.Time { return d.In(time.UTC) }

func (r *storePG) Create(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusOpen
	}
	kind, patient, dependent, guardian := occupantArgs(s.Occupant)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, slot_date, start_minute, end_minute, status,
			occupant_kind, occupant_patient_id, occupant_dependent_id, occupant_guardian_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING version, created_at, updated_at`,
		s.ID, s.DoctorID, dateArg(s.Date), int(s.StartTime), int(s.EndTime), string(s.Status),
		kind, patient, dependent, guardian,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err), db.IsExclusionViolation(err):
		return fmt.Errorf("slot %s %s-%s overlaps an existing slot: %w", s.Date, s.StartTime, s.EndTime, apperr.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return apperr.Validation("slot references an unknown doctor or dependent")
	case err != nil:
		return fmt.Errorf("insert slot: %w", err)
	}
	if s.Occupant.Kind == "" {
		s.Occupant.Kind = OccupantNone
	}
	return nil
}

func (r *storePG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slots WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("slot")
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

func (r *storePG) FindByDoctorAndDateRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM slots
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, start_minute, created_at`,
		doctorID, dateArg(from), dateArg(to))
	if err != nil {
		return nil, fmt.Errorf("find slots: %w", err)
	}
	return scanSlots(rows)
}

func (r *storePG) FindOpenByDoctor(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM slots
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3 AND status = 'open'
		ORDER BY slot_date, start_minute`,
		doctorID, dateArg(from), dateArg(to))
	if err != nil {
		return nil, fmt.Errorf("find open slots: %w", err)
	}
	return scanSlots(rows)
}

func (r *storePG) FindByOccupant(ctx context.Context, patientID string, dependentIDs []uuid.UUID) ([]*Slot, error) {
	if dependentIDs == nil {
		dependentIDs = []uuid.UUID{}
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM slots
		WHERE occupant_patient_id = $1 OR occupant_dependent_id = ANY($2)
		ORDER BY slot_date, start_minute, id`,
		patientID, dependentIDs)
	if err != nil {
		return nil, fmt.Errorf("find occupant slots: %w", err)
	}
	return scanSlots(rows)
}

// Transition is a single conditional UPDATE. When it matches nothing, a
// second lookup tells a missing slot apart from a lost race.
func (r *storePG) Transition(ctx context.Context, req TransitionRequest) (*Slot, error) {
	if !CanTransition(req.From, req.To) {
		return nil, fmt.Errorf("%s -> %s: %w", req.From, req.To, apperr.ErrInvalidState)
	}
	kind, patient, dependent, guardian := occupantArgs(req.Occupant)
	args := []interface{}{req.SlotID, string(req.From), string(req.To), kind, patient, dependent, guardian}
	q := `
		UPDATE slots SET status = $3, occupant_kind = $4, occupant_patient_id = $5,
			occupant_dependent_id = $6, occupant_guardian_id = $7,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = $2`
	if req.ExpectedVersion != 0 {
		q += ` AND version = $8`
		args = append(args, req.ExpectedVersion)
	}
	q += ` RETURNING ` + slotCols

	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, q, args...))
	switch {
	case err == nil:
		return s, nil
	case db.IsForeignKeyViolation(err):
		return nil, apperr.Validation("occupant references an unknown dependent")
	case !db.IsNoRows(err):
		return nil, fmt.Errorf("transition slot: %w", err)
	}

	exists, err := r.exists(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("slot")
	}
	return nil, fmt.Errorf("slot %s is no longer %s: %w", req.SlotID, req.From, apperr.ErrConflict)
}

func (r *storePG) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return ok, nil
}

func (r *storePG) DeleteOpen(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM slots WHERE id = $1 AND status = 'open'`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("slot")
	}
	return fmt.Errorf("slot %s is not open: %w", id, apperr.ErrConflict)
}

func (r *storePG) CompleteElapsed(ctx context.Context, now time.Time, loc *time.Location) (int64, error) {
	today := civil.DateOf(now.In(loc))
	minute := timeofday.Of(now, loc)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE slots SET status = 'completed', version = version + 1, updated_at = NOW()
		WHERE status = 'reserved'
		  AND (slot_date < $1 OR (slot_date = $1 AND end_minute <= $2))`,
		dateArg(today), int(minute))
	if err != nil {
		return 0, fmt.Errorf("complete elapsed slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

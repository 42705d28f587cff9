package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/db"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

type repoPG struct{ pool db.Pool }

func NewRepoPG(pool db.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const doctorCols = `d.id, d.first_name, d.last_name, d.city_id, c.name,
	COALESCE((SELECT array_agg(s.name ORDER BY s.name)
		FROM doctor_specialties ds JOIN specialties s ON s.id = ds.specialty_id
		WHERE ds.doctor_id = d.id), '{}') AS specialties,
	d.address, d.postal_code, d.phone, d.latitude, d.longitude,
	d.accepting_new_patients, d.sector, d.image_url, d.created_at, d.updated_at`

const doctorFrom = ` FROM doctors d JOIN cities c ON c.id = d.city_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.CityID, &d.City, &d.Specialties,
		&d.Address, &d.PostalCode, &d.Phone, &d.Latitude, &d.Longitude,
		&d.AcceptingNewPatients, &d.Sector, &d.ImageURL, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive substring pattern for ILIKE with
// the wildcard characters of term escaped.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *repoPG) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Query != "" {
		where += fmt.Sprintf(` AND (d.first_name ILIKE $%[1]d OR d.last_name ILIKE $%[1]d OR EXISTS (
			SELECT 1 FROM doctor_specialties ds JOIN specialties s ON s.id = ds.specialty_id
			WHERE ds.doctor_id = d.id AND s.name ILIKE $%[1]d))`, idx)
		args = append(args, containsPattern(f.Query))
		idx++
	}
	if f.Location != "" {
		where += fmt.Sprintf(` AND c.name ILIKE $%d`, idx)
		args = append(args, containsPattern(f.Location))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+doctorFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `SELECT ` + doctorCols + doctorFrom + where +
		fmt.Sprintf(` ORDER BY d.last_name ASC, d.id ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search doctors: %w", err)
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor")
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *repoPG) ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM doctors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list doctor ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT weekday, start_minute, end_minute FROM doctor_availability
		WHERE doctor_id = $1 ORDER BY weekday, start_minute`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	var windows []AvailabilityWindow
	for rows.Next() {
		var weekday, start, end int
		if err := rows.Scan(&weekday, &start, &end); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		windows = append(windows, AvailabilityWindow{
			Weekday: time.Weekday(weekday),
			Start:   timeofday.TimeOfDay(start),
			End:     timeofday.TimeOfDay(end),
		})
	}
	return windows, rows.Err()
}

func (r *repoPG) ReplaceAvailability(ctx context.Context, doctorID uuid.UUID, windows []AvailabilityWindow) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, doctorID).Scan(&exists); err != nil {
			return fmt.Errorf("check doctor: %w", err)
		}
		if !exists {
			return apperr.NotFound("doctor")
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_availability WHERE doctor_id = $1`, doctorID); err != nil {
			return fmt.Errorf("clear availability: %w", err)
		}
		for _, w := range windows {
			if _, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)`,
				doctorID, int(w.Weekday), w.Start.Minutes(), w.End.Minutes()); err != nil {
				return fmt.Errorf("insert availability: %w", err)
			}
		}
		return nil
	})
}

func (r *repoPG) ListCities(ctx context.Context, query string) ([]City, error) {
	rows, err := r.lookup(ctx, "cities", query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := []City{}
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (r *repoPG) ListSpecialties(ctx context.Context, query string) ([]Specialty, error) {
	rows, err := r.lookup(ctx, "specialties", query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	specialties := []Specialty{}
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		specialties = append(specialties, s)
	}
	return specialties, rows.Err()
}

// lookup lists id/name rows of a reference table; table is never user input.
func (r *repoPG) lookup(ctx context.Context, table, query string) (pgx.Rows, error) {
	sql := `SELECT id, name FROM ` + table
	var args []interface{}
	if query != "" {
		sql += ` WHERE name ILIKE $1`
		args = append(args, containsPattern(query))
	}
	sql += ` ORDER BY name`
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return rows, nil
}

package dependent

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/db"
)

type repoPG struct{ pool db.Pool }

func NewRepoPG(pool db.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const dependentCols = `id, first_name, last_name, birth_date, birth_place, sex, phone,
	address, postal_code, city, photo_url, created_at, updated_at`

func scanDependent(row pgx.Row) (*Dependent, error) {
	var d Dependent
	var birth time.Time
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &birth, &d.BirthPlace, &d.Sex, &d.Phone,
		&d.Address, &d.PostalCode, &d.City, &d.PhotoURL, &d.CreatedAt, &d.UpdatedAt)
	d.BirthDate = civil.DateOf(birth)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Dependent, g *Guardianship) error {
	d.ID = uuid.New()
	g.DependentID = d.ID
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO dependents (id, first_name, last_name, birth_date, birth_place, sex, phone,
				address, postal_code, city, photo_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at, updated_at`,
			d.ID, d.FirstName, d.LastName, d.BirthDate.In(time.UTC), d.BirthPlace, d.Sex, d.Phone,
			d.Address, d.PostalCode, d.City, d.PhotoURL,
		).Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
			return fmt.Errorf("insert dependent: %w", err)
		}
		if err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO guardianships (user_id, dependent_id, role) VALUES ($1, $2, $3)
			RETURNING created_at`,
			g.UserID, g.DependentID, g.Role,
		).Scan(&g.CreatedAt); err != nil {
			return fmt.Errorf("insert guardianship: %w", err)
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dependent, error) {
	d, err := scanDependent(r.conn(ctx).QueryRow(ctx, `SELECT `+dependentCols+` FROM dependents WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("dependent")
	}
	if err != nil {
		return nil, fmt.Errorf("get dependent: %w", err)
	}
	return d, nil
}

func (r *repoPG) Update(ctx context.Context, d *Dependent) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE dependents SET first_name=$2, last_name=$3, birth_date=$4, birth_place=$5, sex=$6,
			phone=$7, address=$8, postal_code=$9, city=$10, photo_url=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.BirthDate.In(time.UTC), d.BirthPlace, d.Sex,
		d.Phone, d.Address, d.PostalCode, d.City, d.PhotoURL,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("dependent")
	}
	if err != nil {
		return fmt.Errorf("update dependent: %w", err)
	}
	return nil
}

// Delete fails with a validation error while any slot still references the dependent.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM dependents WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("dependent still has appointments")
	}
	if err != nil {
		return fmt.Errorf("delete dependent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("dependent")
	}
	return nil
}

func (r *repoPG) ListForGuardian(ctx context.Context, userID string) ([]*Dependent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+dependentCols+` FROM dependents
		WHERE id IN (SELECT dependent_id FROM guardianships WHERE user_id = $1)
		ORDER BY last_name ASC, first_name ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	defer rows.Close()

	items := []*Dependent{}
	for rows.Next() {
		d, err := scanDependent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) ListIDsForGuardian(ctx context.Context, userID string) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT dependent_id FROM guardianships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list guarded dependents: %w", err)
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

func (r *repoPG) AddGuardian(ctx context.Context, g *Guardianship) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO guardianships (user_id, dependent_id, role) VALUES ($1, $2, $3)
		RETURNING created_at`,
		g.UserID, g.DependentID, g.Role,
	).Scan(&g.CreatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("user is already a guardian: %w", apperr.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("dependent")
	case err != nil:
		return fmt.Errorf("add guardian: %w", err)
	}
	return nil
}

func (r *repoPG) IsGuardian(ctx context.Context, userID string, dependentID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM guardianships WHERE user_id = $1 AND dependent_id = $2)`,
		userID, dependentID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check guardianship: %w", err)
	}
	return ok, nil
}

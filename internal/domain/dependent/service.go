package dependent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService builds the dependents service. loc decides what "today" is when
// checking birth dates.
func NewService(repo Repository, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now, logger: logger}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

func (s *Service) validate(d *Dependent) error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	if d.FirstName == "" {
		return apperr.Validation("first_name is required")
	}
	if d.LastName == "" {
		return apperr.Validation("last_name is required")
	}
	if !d.BirthDate.IsValid() {
		return apperr.Validation("birth_date is required")
	}
	if d.BirthDate.After(s.today()) {
		return apperr.Validation("birth_date cannot be in the future")
	}
	return nil
}

func (s *Service) ListForGuardian(ctx context.Context, actorID string) ([]*Dependent, error) {
	return s.repo.ListForGuardian(ctx, actorID)
}

// Create stores d and makes actorID its legal guardian.
func (s *Service) Create(ctx context.Context, actorID string, d *Dependent) error {
	if err := s.validate(d); err != nil {
		return err
	}
	g := &Guardianship{UserID: actorID, Role: LegalGuardianRole}
	if err := s.repo.Create(ctx, d, g); err != nil {
		return err
	}
	s.logger.Info().Str("dependent_id", d.ID.String()).Str("guardian", actorID).Msg("dependent created")
	return nil
}

// authorized loads the dependent and checks that actorID guards it.
func (s *Service) authorized(ctx context.Context, actorID string, id uuid.UUID) (*Dependent, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.IsGuardian(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("not a guardian of dependent %s: %w", id, apperr.ErrUnauthorized)
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, actorID string, id uuid.UUID) (*Dependent, error) {
	return s.authorized(ctx, actorID, id)
}

// Update replaces the dependent's details. Identity and timestamps are kept.
func (s *Service) Update(ctx context.Context, actorID string, id uuid.UUID, in *Dependent) (*Dependent, error) {
	cur, err := s.authorized(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	in.ID = cur.ID
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Service) Delete(ctx context.Context, actorID string, id uuid.UUID) error {
	if _, err := s.authorized(ctx, actorID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("dependent_id", id.String()).Str("actor", actorID).Msg("dependent deleted")
	return nil
}

// AddGuardian lets an existing guardian share the dependent with another user.
func (s *Service) AddGuardian(ctx context.Context, actorID string, id uuid.UUID, userID, role string) (*Guardianship, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if _, err := s.authorized(ctx, actorID, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(role) == "" {
		role = LegalGuardianRole
	}
	g := &Guardianship{UserID: userID, DependentID: id, Role: role}
	if err := s.repo.AddGuardian(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ByID loads a dependent without a guardianship check. Callers must already
// have authorized the read.
func (s *Service) ByID(ctx context.Context, id uuid.UUID) (*Dependent, error) {
	return s.repo.GetByID(ctx, id)
}

// IsGuardianOf reports whether actorID currently guards dependentID.
func (s *Service) IsGuardianOf(ctx context.Context, actorID string, dependentID uuid.UUID) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	return s.repo.IsGuardian(ctx, actorID, dependentID)
}

// GuardedIDs lists the dependents actorID guards.
func (s *Service) GuardedIDs(ctx context.Context, actorID string) ([]uuid.UUID, error) {
	return s.repo.ListIDsForGuardian(ctx, actorID)
}

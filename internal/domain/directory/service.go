package directory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/cache"
	"github.com/AmalSalhi1/BeedicalApp/pkg/pagination"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

type Service struct {
	repo     Repository
	cache    *cache.JSONCache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewService wires the directory. c may be nil to disable search caching.
func NewService(repo Repository, c *cache.JSONCache, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, logger: logger}
}

// Search finds doctors whose first name, last name or one of whose specialties
// contains q.Query, in a city whose name contains q.Location. Both matches are
// case-insensitive; blank terms match everything. Results are ordered by last
// name then id.
func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	f := SearchFilter{Query: strings.TrimSpace(q.Query), Location: strings.TrimSpace(q.Location)}
	p := pagination.New(q.Page, q.PageSize)

	key := searchKey(f, p)
	return cache.Fetch(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) (*SearchResult, error) {
		items, total, err := s.repo.Search(ctx, f, p.Limit(), p.Offset())
		if err != nil {
			return nil, err
		}
		return pagination.NewResponse(items, total, p), nil
	})
}

// searchKey quotes the free-text terms so no pair of terms shares a key.
func searchKey(f SearchFilter, p pagination.Params) string {
	return fmt.Sprintf("search:%s:%s:%d:%d",
		strconv.Quote(strings.ToLower(f.Query)), strconv.Quote(strings.ToLower(f.Location)), p.Page, p.PageSize)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorDetail, error) {
	d, err := s.repo.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	windows, err := s.repo.ListAvailability(ctx, id)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []AvailabilityWindow{}
	}
	return &DoctorDetail{Doctor: d, Availability: windows}, nil
}

// Doctor returns the doctor without the availability template.
func (s *Service) Doctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

// AvailabilityTemplate returns the doctor's weekly windows ordered by weekday
// and start time.
func (s *Service) AvailabilityTemplate(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityWindow, error) {
	return s.repo.ListAvailability(ctx, doctorID)
}

func (s *Service) ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListDoctorIDs(ctx)
}

func (s *Service) ListCities(ctx context.Context, query string) ([]City, error) {
	return s.repo.ListCities(ctx, strings.TrimSpace(query))
}

func (s *Service) ListSpecialties(ctx context.Context, query string) ([]Specialty, error) {
	return s.repo.ListSpecialties(ctx, strings.TrimSpace(query))
}

// ReplaceAvailability swaps the doctor's weekly template. Windows of the same
// weekday must not overlap. Already published slots are left alone.
func (s *Service) ReplaceAvailability(ctx context.Context, doctorID uuid.UUID, windows []AvailabilityWindow) error {
	if err := ValidateWindows(windows); err != nil {
		return err
	}
	sorted := append([]AvailabilityWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].Start < sorted[j].Start
	})
	if err := s.repo.ReplaceAvailability(ctx, doctorID, sorted); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", doctorID.String()).Int("windows", len(sorted)).Msg("availability template replaced")
	return nil
}

func ValidateWindows(windows []AvailabilityWindow) error {
	for i, w := range windows {
		if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
			return apperr.Validation("window %d: weekday must be 0-6", i)
		}
		if !w.Start.Valid() || !w.End.Valid() || w.Start >= w.End {
			return apperr.Validation("window %d: start must be before end", i)
		}
		for j := 0; j < i; j++ {
			o := windows[j]
			if o.Weekday == w.Weekday && timeofday.Overlaps(o.Start, o.End, w.Start, w.End) {
				return apperr.Validation("windows %d and %d overlap on %s", j, i, w.Weekday)
			}
		}
	}
	return nil
}

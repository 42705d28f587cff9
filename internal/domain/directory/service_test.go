package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/cache"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

// -- Mock Repository --

type mockRepo struct {
	doctors      map[uuid.UUID]*Doctor
	availability map[uuid.UUID][]AvailabilityWindow
	cities       []City
	specialties  []Specialty
	searchCalls  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		availability: make(map[uuid.UUID][]AvailabilityWindow),
	}
}

func (m *mockRepo) addDoctor(first, last, city string, specialties ...string) *Doctor {
	d := &Doctor{
		ID:          uuid.New(),
		FirstName:   first,
		LastName:    last,
		City:        city,
		Specialties: specialties,
		Sector:      1,
	}
	m.doctors[d.ID] = d
	return d
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (m *mockRepo) Search(_ context.Context, f SearchFilter, limit, offset int) ([]*Doctor, int, error) {
	m.searchCalls++
	var matched []*Doctor
	for _, d := range m.doctors {
		if f.Query != "" {
			hit := containsFold(d.FirstName, f.Query) || containsFold(d.LastName, f.Query)
			for _, s := range d.Specialties {
				hit = hit || containsFold(s, f.Query)
			}
			if !hit {
				continue
			}
		}
		if f.Location != "" && !containsFold(d.City, f.Location) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastName != matched[j].LastName {
			return matched[i].LastName < matched[j].LastName
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockRepo) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor")
	}
	return d, nil
}

func (m *mockRepo) ListDoctorIDs(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range m.doctors {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockRepo) ListAvailability(_ context.Context, doctorID uuid.UUID) ([]AvailabilityWindow, error) {
	return m.availability[doctorID], nil
}

func (m *mockRepo) ReplaceAvailability(_ context.Context, doctorID uuid.UUID, windows []AvailabilityWindow) error {
	if _, ok := m.doctors[doctorID]; !ok {
		return apperr.NotFound("doctor")
	}
	m.availability[doctorID] = windows
	return nil
}

func (m *mockRepo) ListCities(_ context.Context, query string) ([]City, error) {
	var out []City
	for _, c := range m.cities {
		if containsFold(c.Name, query) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepo) ListSpecialties(_ context.Context, query string) ([]Specialty, error) {
	var out []Specialty
	for _, s := range m.specialties {
		if containsFold(s.Name, query) {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, nil, time.Minute, zerolog.Nop()), repo
}

func seedDoctors(repo *mockRepo) {
	repo.addDoctor("Amine", "Bennani", "Casablanca", "Cardiologie")
	repo.addDoctor("Salma", "Alaoui", "Rabat", "Dermatologie")
	repo.addDoctor("Youssef", "Chraibi", "Casablanca", "Pédiatrie")
	repo.addDoctor("Karim", "Idrissi", "Marrakech", "Cardiologie", "Médecine générale")
	repo.addDoctor("Nadia", "El Fassi", "Casablanca", "Dermatologie")
	repo.addDoctor("Omar", "Tazi", "Rabat", "Médecine générale")
}

// -- Tests --

func TestSearch_EmptyTermsFirstPage(t *testing.T) {
	svc, repo := newTestService()
	seedDoctors(repo)

	res, err := svc.Search(context.Background(), SearchQuery{Page: 1, PageSize: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCount != 6 {
		t.Errorf("expected total 6, got %d", res.TotalCount)
	}
	if len(res.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(res.Items))
	}
	want := []string{"Alaoui", "Bennani", "Chraibi", "El Fassi", "Idrissi"}
	for i, d := range res.Items {
		if d.LastName != want[i] {
			t.Errorf("item %d: expected %s, got %s", i, want[i], d.LastName)
		}
	}
}

func TestSearch_Filters(t *testing.T) {
	svc, repo := newTestService()
	seedDoctors(repo)

	tests := []struct {
		name     string
		query    string
		location string
		want     int
	}{
		{"by specialty", "cardio", "", 2},
		{"by last name", "tazi", "", 1},
		{"by first name case-insensitive", "NADIA", "", 1},
		{"by city", "", "casa", 3},
		{"specialty and city", "dermato", "rabat", 1},
		{"whitespace is blank", "   ", "  ", 6},
		{"no match", "neurologie", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Search(context.Background(), SearchQuery{Query: tt.query, Location: tt.location})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.TotalCount != tt.want || len(res.Items) != tt.want {
				t.Errorf("expected %d results, got total=%d items=%d", tt.want, res.TotalCount, len(res.Items))
			}
		})
	}
}

func TestSearch_PageNormalisation(t *testing.T) {
	svc, repo := newTestService()
	seedDoctors(repo)

	res, err := svc.Search(context.Background(), SearchQuery{Page: -2, PageSize: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Page != 1 || res.PageSize != 100 {
		t.Errorf("expected page 1 size 100, got %d/%d", res.Page, res.PageSize)
	}

	res, err = svc.Search(context.Background(), SearchQuery{Page: 5, PageSize: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 0 || res.TotalCount != 6 {
		t.Errorf("expected empty page with real total, got %d items total %d", len(res.Items), res.TotalCount)
	}
}

func TestSearch_PagesAreDisjoint(t *testing.T) {
	svc, repo := newTestService()
	seedDoctors(repo)

	seen := map[uuid.UUID]bool{}
	for page := 1; page <= 3; page++ {
		res, err := svc.Search(context.Background(), SearchQuery{Page: page, PageSize: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, d := range res.Items {
			if seen[d.ID] {
				t.Errorf("doctor %s returned on two pages", d.LastName)
			}
			seen[d.ID] = true
		}
	}
	if len(seen) != 6 {
		t.Errorf("expected all 6 doctors across pages, got %d", len(seen))
	}
}

func TestSearch_CachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := newMockRepo()
	seedDoctors(repo)
	svc := NewService(repo, cache.New(client, "directory", zerolog.Nop()), time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		res, err := svc.Search(context.Background(), SearchQuery{Query: "Cardio", Page: 1, PageSize: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TotalCount != 2 {
			t.Fatalf("expected 2 results, got %d", res.TotalCount)
		}
	}
	if repo.searchCalls != 1 {
		t.Errorf("expected a single repository search, got %d", repo.searchCalls)
	}

	// Normalised key: case and whitespace do not create new entries.
	if _, err := svc.Search(context.Background(), SearchQuery{Query: " cardio ", Page: 1, PageSize: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.searchCalls != 1 {
		t.Errorf("expected normalised query to hit the cache, got %d calls", repo.searchCalls)
	}
}

func TestSearch_CacheKeySeparatesTerms(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := newMockRepo()
	repo.addDoctor("Salma", "a|b", "Rabat")
	svc := NewService(repo, cache.New(client, "directory", zerolog.Nop()), time.Minute, zerolog.Nop())
	ctx := context.Background()

	res, err := svc.Search(ctx, SearchQuery{Query: "a|b", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCount != 1 {
		t.Fatalf("expected 1 result, got %d", res.TotalCount)
	}

	res, err = svc.Search(ctx, SearchQuery{Query: "a", Location: "b|", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCount != 0 {
		t.Errorf("expected no doctor in a city matching %q, got %d", "b|", res.TotalCount)
	}
	if repo.searchCalls != 2 {
		t.Errorf("expected each distinct search to reach the repository, got %d calls", repo.searchCalls)
	}
}

func TestGetDoctor(t *testing.T) {
	svc, repo := newTestService()
	d := repo.addDoctor("Amine", "Bennani", "Casablanca")
	repo.availability[d.ID] = []AvailabilityWindow{{Weekday: time.Monday, Start: timeofday.New(9, 0), End: timeofday.New(10, 0)}}

	detail, err := svc.GetDoctor(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Availability) != 1 || detail.DisplayName() != "Dr. Amine Bennani" {
		t.Errorf("unexpected detail %+v", detail)
	}

	if _, err := svc.GetDoctor(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDoctor(t *testing.T) {
	svc, repo := newTestService()
	d := repo.addDoctor("Amine", "Bennani", "Casablanca", "Cardiologie")

	got, err := svc.Doctor(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.City != "Casablanca" || len(got.Specialties) != 1 {
		t.Errorf("unexpected doctor %+v", got)
	}
	if _, err := svc.Doctor(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceAvailability(t *testing.T) {
	svc, repo := newTestService()
	d := repo.addDoctor("Amine", "Bennani", "Casablanca")

	windows := []AvailabilityWindow{
		{Weekday: time.Tuesday, Start: timeofday.New(14, 0), End: timeofday.New(15, 0)},
		{Weekday: time.Monday, Start: timeofday.New(9, 0), End: timeofday.New(10, 0)},
	}
	if err := svc.ReplaceAvailability(context.Background(), d.ID, windows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := repo.availability[d.ID]
	if got[0].Weekday != time.Monday {
		t.Errorf("expected windows sorted by weekday, got %+v", got)
	}
}

func TestValidateWindows(t *testing.T) {
	nine, ten, eleven := timeofday.New(9, 0), timeofday.New(10, 0), timeofday.New(11, 0)
	tests := []struct {
		name    string
		windows []AvailabilityWindow
		wantErr bool
	}{
		{"valid", []AvailabilityWindow{{time.Monday, nine, ten}, {time.Monday, ten, eleven}}, false},
		{"same range other day", []AvailabilityWindow{{time.Monday, nine, ten}, {time.Tuesday, nine, ten}}, false},
		{"overlap", []AvailabilityWindow{{time.Monday, nine, eleven}, {time.Monday, ten, eleven}}, true},
		{"empty range", []AvailabilityWindow{{time.Monday, ten, ten}}, true},
		{"bad weekday", []AvailabilityWindow{{time.Weekday(9), nine, ten}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWindows(tt.windows)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWindows() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestListLookups(t *testing.T) {
	svc, repo := newTestService()
	repo.cities = []City{{uuid.New(), "Casablanca"}, {uuid.New(), "Rabat"}}
	repo.specialties = []Specialty{{uuid.New(), "Cardiologie"}, {uuid.New(), "Dermatologie"}}

	cities, _ := svc.ListCities(context.Background(), " rab ")
	if len(cities) != 1 || cities[0].Name != "Rabat" {
		t.Errorf("unexpected cities %+v", cities)
	}
	specialties, _ := svc.ListSpecialties(context.Background(), "")
	if len(specialties) != 2 {
		t.Errorf("expected all specialties, got %+v", specialties)
	}
}

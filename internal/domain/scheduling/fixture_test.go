package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/domain/dependent"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/directory"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

// Sunday evening before the Monday the scenarios book into.
var testNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

var monday = civil.Date{Year: 2026, Month: time.March, Day: 2}

type fakeGuardians struct {
	mu    sync.Mutex
	links map[string]map[uuid.UUID]bool
}

func newFakeGuardians() *fakeGuardians {
	return &fakeGuardians{links: make(map[string]map[uuid.UUID]bool)}
}

func (f *fakeGuardians) link(actor string, dependentID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.links[actor] == nil {
		f.links[actor] = make(map[uuid.UUID]bool)
	}
	f.links[actor][dependentID] = true
}

func (f *fakeGuardians) unlink(actor string, dependentID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links[actor], dependentID)
}

func (f *fakeGuardians) IsGuardianOf(_ context.Context, actorID string, dependentID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[actorID][dependentID], nil
}

func (f *fakeGuardians) GuardedIDs(_ context.Context, actorID string) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id := range f.links[actorID] {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeTemplates struct {
	windows map[uuid.UUID][]directory.AvailabilityWindow
	failing map[uuid.UUID]bool
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{
		windows: make(map[uuid.UUID][]directory.AvailabilityWindow),
		failing: make(map[uuid.UUID]bool),
	}
}

func (f *fakeTemplates) set(doctorID uuid.UUID, windows ...directory.AvailabilityWindow) {
	f.windows[doctorID] = windows
}

func (f *fakeTemplates) AvailabilityTemplate(_ context.Context, doctorID uuid.UUID) ([]directory.AvailabilityWindow, error) {
	if f.failing[doctorID] {
		return nil, errors.New("template unavailable")
	}
	return f.windows[doctorID], nil
}

func (f *fakeTemplates) ListDoctorIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.windows))
	for id := range f.windows {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeDoctors struct {
	doctors map[uuid.UUID]*directory.Doctor
	calls   int
}

func newFakeDoctors(doctors ...*directory.Doctor) *fakeDoctors {
	f := &fakeDoctors{doctors: make(map[uuid.UUID]*directory.Doctor)}
	for _, d := range doctors {
		f.doctors[d.ID] = d
	}
	return f
}

func (f *fakeDoctors) Doctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	f.calls++
	d, ok := f.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor")
	}
	return d, nil
}

type fakeDependents map[uuid.UUID]*dependent.Dependent

func (f fakeDependents) ByID(_ context.Context, id uuid.UUID) (*dependent.Dependent, error) {
	d, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("dependent")
	}
	return d, nil
}

func window(weekday time.Weekday, start, end string) directory.AvailabilityWindow {
	return directory.AvailabilityWindow{Weekday: weekday, Start: mustTime(start), End: mustTime(end)}
}

type fixture struct {
	store     *MemoryStore
	guardians *fakeGuardians
	templates *fakeTemplates
	pub       *Publisher
	coord     *Coordinator
	doctor    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     NewMemoryStore(),
		guardians: newFakeGuardians(),
		templates: newFakeTemplates(),
		doctor:    uuid.New(),
	}
	f.pub = NewPublisher(f.store, f.templates, time.UTC, nil, zerolog.Nop())
	f.coord = NewCoordinator(f.store, f.guardians, time.UTC, time.Second, nil, zerolog.Nop())
	f.setNow(testNow)
	return f
}

func (f *fixture) setNow(now time.Time) {
	clock := func() time.Time { return now }
	f.pub.now = clock
	f.coord.now = clock
	f.store.now = clock
}

func (f *fixture) openSlot(t *testing.T, date civil.Date, start, end string) *Slot {
	t.Helper()
	return f.slotFor(t, f.doctor, date, start, end)
}

// slotFor creates an open slot for doctorID.
func (f *fixture) slotFor(t *testing.T, doctorID uuid.UUID, date civil.Date, start, end string) *Slot {
	t.Helper()
	s := &Slot{
		DoctorID:  doctorID,
		Date:      date,
		StartTime: mustTime(start),
		EndTime:   mustTime(end),
		Status:    StatusOpen,
		Occupant:  NoOccupant(),
	}
	if err := f.store.Create(context.Background(), s); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return s
}

func (f *fixture) status(t *testing.T, id uuid.UUID) SlotStatus {
	t.Helper()
	s, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	return s.Status
}

func self() OccupantRequest { return OccupantRequest{Kind: "self"} }

func forDependent(id uuid.UUID) OccupantRequest {
	return OccupantRequest{Kind: OccupantDependent, DependentID: &id}
}

func mustTime(s string) timeofday.TimeOfDay {
	t, err := timeofday.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

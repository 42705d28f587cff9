package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/pkg/timeofday"
)

// MemoryStore is an in-process SlotStore. Every mutation holds the write lock,
// so Transition is an atomic compare-and-swap on status and version.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*Slot
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[uuid.UUID]*Slot), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, s *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Status == "" {
		s.Status = StatusOpen
	}
	if s.Occupant.Kind == "" {
		s.Occupant.Kind = OccupantNone
	}
	if s.Live() {
		for _, o := range m.slots {
			if o.DoctorID == s.DoctorID && o.Live() && o.Overlaps(s.Date, s.StartTime, s.EndTime) {
				return fmt.Errorf("slot %s %s-%s overlaps an existing slot: %w", s.Date, s.StartTime, s.EndTime, apperr.ErrConflict)
			}
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, dup := m.slots[s.ID]; dup {
		return fmt.Errorf("slot %s already exists: %w", s.ID, apperr.ErrConflict)
	}
	s.Version = 1
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[id]
	if !ok {
		return nil, apperr.NotFound("slot")
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) find(match func(*Slot) bool) []*Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []*Slot{}
	for _, s := range m.slots {
		if match(s) {
			cp := *s
			results = append(results, &cp)
		}
	}
	sortSlots(results)
	return results
}

func sortSlots(slots []*Slot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func inRange(d, from, to civil.Date) bool {
	return !d.Before(from) && !d.After(to)
}

func (m *MemoryStore) FindByDoctorAndDateRange(_ context.Context, doctorID uuid.UUID, from, to civil.Date) ([]*Slot, error) {
	return m.find(func(s *Slot) bool {
		return s.DoctorID == doctorID && inRange(s.Date, from, to)
	}), nil
}

func (m *MemoryStore) FindOpenByDoctor(_ context.Context, doctorID uuid.UUID, from, to civil.Date) ([]*Slot, error) {
	return m.find(func(s *Slot) bool {
		return s.DoctorID == doctorID && s.Status == StatusOpen && inRange(s.Date, from, to)
	}), nil
}

func (m *MemoryStore) FindByOccupant(_ context.Context, patientID string, dependentIDs []uuid.UUID) ([]*Slot, error) {
	guarded := make(map[uuid.UUID]bool, len(dependentIDs))
	for _, id := range dependentIDs {
		guarded[id] = true
	}
	return m.find(func(s *Slot) bool {
		o := s.Occupant
		return (patientID != "" && o.PatientID == patientID) || (o.DependentID != nil && guarded[*o.DependentID])
	}), nil
}

func (m *MemoryStore) Transition(_ context.Context, req TransitionRequest) (*Slot, error) {
	if !CanTransition(req.From, req.To) {
		return nil, fmt.Errorf("%s -> %s: %w", req.From, req.To, apperr.ErrInvalidState)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[req.SlotID]
	if !ok {
		return nil, apperr.NotFound("slot")
	}
	if s.Status != req.From || (req.ExpectedVersion != 0 && s.Version != req.ExpectedVersion) {
		return nil, fmt.Errorf("slot %s is no longer %s: %w", req.SlotID, req.From, apperr.ErrConflict)
	}
	s.Status = req.To
	s.Occupant = req.Occupant
	if s.Occupant.Kind == "" {
		s.Occupant.Kind = OccupantNone
	}
	s.Version++
	s.UpdatedAt = m.now()
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) DeleteOpen(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return apperr.NotFound("slot")
	}
	if s.Status != StatusOpen {
		return fmt.Errorf("slot %s is not open: %w", id, apperr.ErrConflict)
	}
	delete(m.slots, id)
	return nil
}

func (m *MemoryStore) CompleteElapsed(_ context.Context, now time.Time, loc *time.Location) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := civil.DateOf(now.In(loc))
	minute := timeofday.Of(now, loc)
	var n int64
	for _, s := range m.slots {
		if s.Status != StatusReserved {
			continue
		}
		if s.Date.Before(today) || (s.Date == today && s.EndTime <= minute) {
			s.Status = StatusCompleted
			s.Version++
			s.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

package trip

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// MemStore keeps all trips under one mutex, so every mutation is trivially
// atomic per trip. It implements the same conditional semantics as the
// Postgres store.
type MemStore struct {
	mu      sync.Mutex
	trips   map[types.ID]*Trip
	events  []Event
	eventID int64
}

func NewMemStore() *MemStore {
	return &MemStore{trips: make(map[types.ID]*Trip)}
}

func (s *MemStore) Create(_ context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneTrip(t)
	s.trips[t.ID] = cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTrip(t), nil
}

func (s *MemStore) ListByDriver(_ context.Context, driverID types.ID) ([]*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Trip
	for _, t := range s.trips {
		if t.DriverID == driverID {
			out = append(out, cloneTrip(t))
		}
	}
	sortTrips(out)
	return out, nil
}

func (s *MemStore) ListActive(_ context.Context) ([]*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Trip
	for _, t := range s.trips {
		if t.Status == StatusActive {
			out = append(out, cloneTrip(t))
		}
	}
	sortTrips(out)
	return out, nil
}

func (s *MemStore) InsertAssignment(_ context.Context, tripID types.ID, a *Assignment, allowed []Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return false, ErrNotFound
	}
	if !statusIn(t.Status, allowed) {
		return false, nil
	}
	if t.AvailableSeats < a.Seats {
		return false, nil
	}
	t.AvailableSeats -= a.Seats
	t.Assignments = append(t.Assignments, *a)
	return true, nil
}

func (s *MemStore) ReleaseAssignment(_ context.Context, tripID, passengerID types.ID, to AssignmentStatus) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return false, 0, ErrNotFound
	}
	for i := range t.Assignments {
		a := &t.Assignments[i]
		if a.PassengerID != passengerID || !a.Status.HoldsSeats() {
			continue
		}
		a.Status = to
		t.AvailableSeats += a.Seats
		return true, a.Seats, nil
	}
	return false, 0, nil
}

func (s *MemStore) UpdateAssignmentStatus(_ context.Context, tripID, passengerID types.ID, from, to AssignmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return false, ErrNotFound
	}
	for i := range t.Assignments {
		a := &t.Assignments[i]
		if a.PassengerID == passengerID && a.Status == from {
			a.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != from || t.StatusVersion != version {
		return false, nil
	}
	t.Status = to
	t.StatusVersion++
	stampStatus(t, to)
	return true, nil
}

func (s *MemStore) SetShareable(_ context.Context, id types.ID, shareable bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != StatusActive && t.Status != StatusInProgress {
		return false, nil
	}
	t.Shareable = shareable
	return true, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID++
	cp := *e
	cp.ID = s.eventID
	s.events = append(s.events, cp)
	return nil
}

// Events returns a copy of the recorded audit rows, oldest first.
func (s *MemStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func stampStatus(t *Trip, to Status) {
	now := new(time.Time)
	*now = time.Now()
	switch to {
	case StatusInProgress:
		t.StartedAt = now
	case StatusCompleted:
		t.CompletedAt = now
	case StatusCancelled:
		t.CancelledAt = now
	}
}

func cloneTrip(t *Trip) *Trip {
	cp := *t
	cp.Assignments = make([]Assignment, len(t.Assignments))
	copy(cp.Assignments, t.Assignments)
	return &cp
}

func sortTrips(trips []*Trip) {
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
}

// README: Matcher unit tests covering filtering, ranking, and tie-breaks.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pricing"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// Roughly 1 km of latitude at the test origin.
const kmLat = 0.008993

var (
	basePickup  = types.Point{Lat: 25.033, Lng: 121.565}
	baseDropoff = types.Point{Lat: 25.150, Lng: 121.600}
)

// ---------------------------------------------------------------------------
// In-memory trip source
// ---------------------------------------------------------------------------

type mockTripSource struct {
	mu    sync.Mutex
	trips map[types.ID]*trip.Trip
}

func newMockTripSource() *mockTripSource {
	return &mockTripSource{trips: make(map[types.ID]*trip.Trip)}
}

func (m *mockTripSource) put(t *trip.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
}

func (m *mockTripSource) Get(_ context.Context, id types.ID) (*trip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

type env struct {
	index  *MemoryIndex
	trips  *mockTripSource
	svc    *Service
	depart time.Time
}

func newEnv() *env {
	index := NewMemoryIndex()
	trips := newMockTripSource()
	prc := pricing.NewService(pricing.DefaultRate, nil)
	return &env{
		index:  index,
		trips:  trips,
		svc:    NewService(index, trips, prc, DefaultRadiusKm),
		depart: time.Now().Add(3 * time.Hour),
	}
}

// addTrip registers an active trip whose origin sits pickupKm north of the
// base pickup point and whose destination sits dropoffKm north of the base
// dropoff point.
func (e *env) addTrip(id string, pickupKm, dropoffKm float64, seats int) *trip.Trip {
	t := &trip.Trip{
		ID:             types.ID(id),
		DriverID:       types.ID("driver_" + id),
		Origin:         types.Point{Lat: basePickup.Lat + pickupKm*kmLat, Lng: basePickup.Lng},
		Destination:    types.Point{Lat: baseDropoff.Lat + dropoffKm*kmLat, Lng: baseDropoff.Lng},
		DepartureAt:    e.depart,
		Capacity:       4,
		AvailableSeats: seats,
		Status:         trip.StatusActive,
		Shareable:      true,
	}
	e.trips.put(t)
	if err := e.index.AddTrip(context.Background(), t.ID, t.Origin); err != nil {
		panic(err)
	}
	return t
}

func (e *env) find(t *testing.T, q Query) []Candidate {
	t.Helper()
	out, err := e.svc.FindCandidates(context.Background(), q)
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	return out
}

func baseQuery() Query {
	return Query{Pickup: basePickup, Dropoff: baseDropoff}
}

// ---------------------------------------------------------------------------
// Ranking
// ---------------------------------------------------------------------------

// TestFindCandidatesRanking sets up trips roughly 1, 3, and 6 km from the
// pickup point: the 6 km trip falls outside the 5 km radius, and the
// survivors come back ordered by combined distance.
func TestFindCandidatesRanking(t *testing.T) {
	e := newEnv()
	e.addTrip("trip_near", 1, 1, 4)
	e.addTrip("trip_mid", 3, 1, 4)
	e.addTrip("trip_far", 6, 1, 4)

	out := e.find(t, baseQuery())
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].TripID != "trip_near" || out[1].TripID != "trip_mid" {
		t.Fatalf("wrong order: %s, %s", out[0].TripID, out[1].TripID)
	}
	if out[0].Score >= out[1].Score {
		t.Fatalf("scores not ascending: %.3f then %.3f", out[0].Score, out[1].Score)
	}
	if out[0].PickupDistanceKm < 0.9 || out[0].PickupDistanceKm > 1.1 {
		t.Fatalf("pickup distance off: %.3f", out[0].PickupDistanceKm)
	}
}

func TestFindCandidatesEqualScoreTieBreak(t *testing.T) {
	e := newEnv()
	// Identical geometry, so identical scores; ids decide the order.
	e.addTrip("trip_b", 1, 1, 4)
	e.addTrip("trip_a", 1, 1, 4)

	out := e.find(t, baseQuery())
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].TripID != "trip_a" || out[1].TripID != "trip_b" {
		t.Fatalf("tie not broken by id: %s, %s", out[0].TripID, out[1].TripID)
	}
}

func TestFindCandidatesPricing(t *testing.T) {
	e := newEnv()
	e.addTrip("trip_priced", 2, 1, 4)

	out := e.find(t, baseQuery())
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	c := out[0]
	prc := pricing.NewService(pricing.DefaultRate, nil)
	want, _ := prc.EstimateFromDistance(c.PickupDistanceKm + c.DropoffDistanceKm)
	if c.Price != want {
		t.Fatalf("price = %+v, want %+v", c.Price, want)
	}
	if c.Price.Amount <= pricing.DefaultRate.BaseFare {
		t.Fatalf("price %d should exceed the base fare", c.Price.Amount)
	}
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

func TestFindCandidatesSkipsNonActive(t *testing.T) {
	e := newEnv()
	started := e.addTrip("trip_started", 1, 1, 4)
	started.Status = trip.StatusInProgress
	e.trips.put(started)
	cancelled := e.addTrip("trip_cancelled", 1, 1, 4)
	cancelled.Status = trip.StatusCancelled
	e.trips.put(cancelled)
	e.addTrip("trip_open", 2, 1, 4)

	out := e.find(t, baseQuery())
	if len(out) != 1 || out[0].TripID != "trip_open" {
		t.Fatalf("expected only trip_open, got %v", candidateIDs(out))
	}
}

func TestFindCandidatesSeatFilter(t *testing.T) {
	e := newEnv()
	e.addTrip("trip_full", 1, 1, 0)
	e.addTrip("trip_single", 2, 1, 1)
	e.addTrip("trip_roomy", 3, 1, 3)

	out := e.find(t, baseQuery())
	if len(out) != 2 {
		t.Fatalf("default min seats: expected 2 candidates, got %v", candidateIDs(out))
	}

	q := baseQuery()
	q.MinSeats = 2
	out = e.find(t, q)
	if len(out) != 1 || out[0].TripID != "trip_roomy" {
		t.Fatalf("min seats 2: expected only trip_roomy, got %v", candidateIDs(out))
	}
}

func TestFindCandidatesDropoffRadius(t *testing.T) {
	e := newEnv()
	e.addTrip("trip_same_way", 1, 1, 4)
	// Origin nearby but destination 8 km from the requested dropoff.
	e.addTrip("trip_wrong_way", 1, 8, 4)

	out := e.find(t, baseQuery())
	if len(out) != 1 || out[0].TripID != "trip_same_way" {
		t.Fatalf("expected only trip_same_way, got %v", candidateIDs(out))
	}
}

func TestFindCandidatesDepartureWindow(t *testing.T) {
	e := newEnv()
	onTime := e.addTrip("trip_on_time", 1, 1, 4)
	late := e.addTrip("trip_late", 2, 1, 4)
	late.DepartureAt = e.depart.Add(5 * time.Hour)
	e.trips.put(late)

	q := baseQuery()
	q.DepartureAround = &onTime.DepartureAt
	out := e.find(t, q)
	if len(out) != 1 || out[0].TripID != "trip_on_time" {
		t.Fatalf("expected only trip_on_time, got %v", candidateIDs(out))
	}

	// Without the window both trips qualify.
	out = e.find(t, baseQuery())
	if len(out) != 2 {
		t.Fatalf("expected 2 without window, got %v", candidateIDs(out))
	}
}

func TestFindCandidatesCustomRadius(t *testing.T) {
	e := newEnv()
	e.addTrip("trip_near", 1, 1, 4)
	e.addTrip("trip_far", 6, 1, 4)

	q := baseQuery()
	q.RadiusKm = 8
	out := e.find(t, q)
	if len(out) != 2 {
		t.Fatalf("radius 8: expected 2 candidates, got %v", candidateIDs(out))
	}
}

func TestFindCandidatesStaleIndexEntry(t *testing.T) {
	e := newEnv()
	e.addTrip("trip_real", 1, 1, 4)
	// Index entry with no backing trip: a leftover from a crashed process.
	if err := e.index.AddTrip(context.Background(), "trip_ghost", basePickup); err != nil {
		t.Fatalf("AddTrip: %v", err)
	}

	out := e.find(t, baseQuery())
	if len(out) != 1 || out[0].TripID != "trip_real" {
		t.Fatalf("expected only trip_real, got %v", candidateIDs(out))
	}
}

func TestFindCandidatesInvalidPoints(t *testing.T) {
	e := newEnv()
	q := baseQuery()
	q.Pickup = types.Point{Lat: 91, Lng: 0}
	if _, err := e.svc.FindCandidates(context.Background(), q); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad pickup: expected ErrBadRequest, got %v", err)
	}

	q = baseQuery()
	q.Dropoff = types.Point{Lat: 0, Lng: -181}
	if _, err := e.svc.FindCandidates(context.Background(), q); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad dropoff: expected ErrBadRequest, got %v", err)
	}
}

func TestFindCandidatesEmptyIndex(t *testing.T) {
	e := newEnv()
	out := e.find(t, baseQuery())
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %v", candidateIDs(out))
	}
}

// ---------------------------------------------------------------------------
// Memory index
// ---------------------------------------------------------------------------

func TestMemoryIndexRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	for i := 0; i < 3; i++ {
		id := types.ID(fmt.Sprintf("trip_%d", i))
		origin := types.Point{Lat: basePickup.Lat + float64(i)*kmLat, Lng: basePickup.Lng}
		if err := idx.AddTrip(ctx, id, origin); err != nil {
			t.Fatalf("AddTrip: %v", err)
		}
	}

	ids, err := idx.NearbyTripIDs(ctx, basePickup, 5)
	if err != nil {
		t.Fatalf("NearbyTripIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "trip_0" {
		t.Fatalf("expected 3 ids nearest-first, got %v", ids)
	}

	if err := idx.RemoveTrip(ctx, "trip_1"); err != nil {
		t.Fatalf("RemoveTrip: %v", err)
	}
	ids, err = idx.NearbyTripIDs(ctx, basePickup, 5)
	if err != nil {
		t.Fatalf("NearbyTripIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids after removal, got %v", ids)
	}
	for _, id := range ids {
		if id == "trip_1" {
			t.Fatal("removed trip still returned")
		}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func candidateIDs(out []Candidate) []types.ID {
	ids := make([]types.ID, len(out))
	for i, c := range out {
		ids[i] = c.TripID
	}
	return ids
}

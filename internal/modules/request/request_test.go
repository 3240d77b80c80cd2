// README: Request lifecycle tests (transition tables, matching snapshots, cascades).
package request

import (
	"context"
	"fmt"
	"testing"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusMatching, true},
		{StatusPending, StatusMatched, true},
		{StatusPending, StatusCancelled, true},
		{StatusMatching, StatusMatching, true},
		{StatusMatching, StatusMatched, true},
		{StatusMatching, StatusCancelled, true},
		{StatusMatched, StatusInProgress, true},
		{StatusMatched, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		// invalid: terminal states and skips
		{StatusPending, StatusInProgress, false},
		{StatusPending, StatusCompleted, false},
		{StatusMatching, StatusCompleted, false},
		{StatusMatched, StatusCompleted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	valid := CreateCommand{
		RiderID: "r1",
		Pickup:  types.Point{Lat: 25.033, Lng: 121.565},
		Dropoff: types.Point{Lat: 25.0478, Lng: 121.5318},
		Seats:   1,
	}

	cases := []struct {
		name   string
		mutate func(c CreateCommand) CreateCommand
	}{
		{"missing rider", func(c CreateCommand) CreateCommand { c.RiderID = ""; return c }},
		{"zero seats", func(c CreateCommand) CreateCommand { c.Seats = 0; return c }},
		{"negative seats", func(c CreateCommand) CreateCommand { c.Seats = -1; return c }},
		{"bad pickup", func(c CreateCommand) CreateCommand { c.Pickup.Lat = 91; return c }},
		{"bad dropoff", func(c CreateCommand) CreateCommand { c.Dropoff.Lng = -181; return c }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.mutate(valid)); err != ErrBadRequest {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}

	r, err := svc.Create(ctx, valid)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
}

func TestCreateRejectsSecondOpenRequest(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	first := mustCreateRequest(t, svc, "r1", 1)
	if _, err := svc.Create(ctx, createCmd("r1", 1)); err != ErrActiveRequest {
		t.Fatalf("expected ErrActiveRequest, got %v", err)
	}

	// Once the open request is resolved, a new one is allowed.
	if err := svc.MarkCancelled(ctx, first, "r1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Create(ctx, createCmd("r1", 1)); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestAttachMatches(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	id := mustCreateRequest(t, svc, "r1", 1)

	// No candidates: the request stays pending.
	r, err := svc.AttachMatches(ctx, id, nil)
	if err != nil {
		t.Fatalf("attach empty: %v", err)
	}
	if r.Status != StatusPending {
		t.Fatalf("expected pending after empty match run, got %s", r.Status)
	}

	// Candidates beyond the cap are truncated to the top K.
	many := make([]CandidateRef, TopCandidates+3)
	for i := range many {
		many[i] = CandidateRef{TripID: types.ID(fmt.Sprintf("t%d", i)), Score: float64(i)}
	}
	r, err = svc.AttachMatches(ctx, id, many)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if r.Status != StatusMatching {
		t.Fatalf("expected matching, got %s", r.Status)
	}
	if len(r.Candidates) != TopCandidates {
		t.Fatalf("expected %d candidates, got %d", TopCandidates, len(r.Candidates))
	}
	if r.Candidates[0].TripID != "t0" {
		t.Fatalf("expected best candidate first, got %s", r.Candidates[0].TripID)
	}

	// A rerun replaces the snapshot (the matching self-loop).
	r, err = svc.AttachMatches(ctx, id, many[:2])
	if err != nil {
		t.Fatalf("attach rerun: %v", err)
	}
	if len(r.Candidates) != 2 {
		t.Fatalf("expected snapshot replaced, got %d candidates", len(r.Candidates))
	}
}

func TestAttachMatchesRejectsResolvedRequest(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	id := mustCreateRequest(t, svc, "r1", 1)
	mustMatch(t, svc, id, "r1", "trip_1")

	if _, err := svc.AttachMatches(ctx, id, []CandidateRef{{TripID: "t9"}}); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestMarkMatched(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	id := mustCreateRequest(t, svc, "r1", 2)

	if err := svc.MarkMatched(ctx, id, "r_other", "trip_1", types.Money{Amount: 1000, Currency: "USD"}); err != ErrUnauthorized {
		t.Fatalf("wrong rider: expected ErrUnauthorized, got %v", err)
	}

	mustMatch(t, svc, id, "r1", "trip_1")

	r := mustGetRequest(t, svc, id)
	if r.Status != StatusMatched {
		t.Fatalf("expected matched, got %s", r.Status)
	}
	if r.MatchedTripID == nil || *r.MatchedTripID != "trip_1" {
		t.Fatalf("expected matched_trip_id trip_1, got %v", r.MatchedTripID)
	}
	if r.Price == nil || r.Price.Amount != 1000 {
		t.Fatalf("expected price stored, got %v", r.Price)
	}
	if r.MatchedAt == nil {
		t.Fatal("expected matched_at stamped")
	}

	// A second match attempt hits the state gate.
	if err := svc.MarkMatched(ctx, id, "r1", "trip_2", types.Money{Amount: 500, Currency: "USD"}); err != ErrInvalidState {
		t.Fatalf("double match: expected ErrInvalidState, got %v", err)
	}
}

func TestMarkCancelled(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	id := mustCreateRequest(t, svc, "r1", 1)

	if err := svc.MarkCancelled(ctx, id, "r_other"); err != ErrUnauthorized {
		t.Fatalf("wrong rider: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.MarkCancelled(ctx, id, "r1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	r := mustGetRequest(t, svc, id)
	if r.Status != StatusCancelled || r.CancelledAt == nil {
		t.Fatalf("expected cancelled with timestamp, got %+v", r)
	}

	// Terminal requests cannot be cancelled again.
	if err := svc.MarkCancelled(ctx, id, "r1"); err != ErrAlreadyResolved {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestMarkCancelledBySystemActor(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	id := mustCreateRequest(t, svc, "r1", 1)
	// An empty rider id is the system actor and bypasses the ownership check.
	if err := svc.MarkCancelled(ctx, id, ""); err != nil {
		t.Fatalf("system cancel: %v", err)
	}
}

func TestAdvanceWithTrip(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	a := mustCreateRequest(t, svc, "r1", 1)
	b := mustCreateRequest(t, svc, "r2", 1)
	c := mustCreateRequest(t, svc, "r3", 1)
	mustMatch(t, svc, a, "r1", "trip_1")
	mustMatch(t, svc, b, "r2", "trip_1")
	mustMatch(t, svc, c, "r3", "trip_other")

	if err := svc.AdvanceWithTrip(ctx, "trip_1", StatusInProgress); err != nil {
		t.Fatalf("advance in_progress: %v", err)
	}
	assertRequestStatus(t, svc, a, StatusInProgress)
	assertRequestStatus(t, svc, b, StatusInProgress)
	// Requests matched to other trips are untouched.
	assertRequestStatus(t, svc, c, StatusMatched)

	if err := svc.AdvanceWithTrip(ctx, "trip_1", StatusCompleted); err != nil {
		t.Fatalf("advance completed: %v", err)
	}
	assertRequestStatus(t, svc, a, StatusCompleted)
	assertRequestStatus(t, svc, b, StatusCompleted)

	if mustGetRequest(t, svc, a).CompletedAt == nil {
		t.Fatal("expected completed_at stamped")
	}
}

func TestAdvanceWithTripSkipsCancelled(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	a := mustCreateRequest(t, svc, "r1", 1)
	b := mustCreateRequest(t, svc, "r2", 1)
	mustMatch(t, svc, a, "r1", "trip_1")
	mustMatch(t, svc, b, "r2", "trip_1")

	if err := svc.MarkCancelled(ctx, b, "r2"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.AdvanceWithTrip(ctx, "trip_1", StatusInProgress); err != nil {
		t.Fatalf("advance: %v", err)
	}
	assertRequestStatus(t, svc, a, StatusInProgress)
	assertRequestStatus(t, svc, b, StatusCancelled)
}

func TestAdvanceWithTripRejectsBadTarget(t *testing.T) {
	svc := NewService(NewMemStore())
	if err := svc.AdvanceWithTrip(context.Background(), "trip_1", StatusMatched); err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestListByRider(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	first := mustCreateRequest(t, svc, "r1", 1)
	if err := svc.MarkCancelled(ctx, first, "r1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	second := mustCreateRequest(t, svc, "r1", 2)
	mustCreateRequest(t, svc, "r2", 1)

	reqs, err := svc.ListByRider(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].ID != first || reqs[1].ID != second {
		t.Fatalf("expected creation order, got %s, %s", reqs[0].ID, reqs[1].ID)
	}

	if _, err := svc.GetOwned(ctx, second, "r2"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func createCmd(riderID types.ID, seats int) CreateCommand {
	return CreateCommand{
		RiderID: riderID,
		Pickup:  types.Point{Lat: 25.033, Lng: 121.565},
		Dropoff: types.Point{Lat: 25.0478, Lng: 121.5318},
		Seats:   seats,
	}
}

func mustCreateRequest(t *testing.T, svc *Service, riderID types.ID, seats int) types.ID {
	t.Helper()
	r, err := svc.Create(context.Background(), createCmd(riderID, seats))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r.ID
}

func mustGetRequest(t *testing.T, svc *Service, id types.ID) *Request {
	t.Helper()
	r, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	return r
}

func mustMatch(t *testing.T, svc *Service, id, riderID, tripID types.ID) {
	t.Helper()
	if err := svc.MarkMatched(context.Background(), id, riderID, tripID, types.Money{Amount: 750, Currency: "USD"}); err != nil {
		t.Fatalf("mark matched: %v", err)
	}
}

func assertRequestStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	if got := mustGetRequest(t, svc, id).Status; got != want {
		t.Fatalf("expected status %s, got %s", want, got)
	}
}

// README: PostgreSQL request store tests; skipped unless RIDESHARE_TEST_DSN is set.
package request

import (
	"context"
	"testing"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/testdb"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

func setupTestPGStore(t *testing.T) *PGStore {
	t.Helper()
	return NewPGStore(testdb.Connect(t, "ride_requests"))
}

func TestPGStore_LifecycleRoundTrip(t *testing.T) {
	svc := NewService(setupTestPGStore(t))
	ctx := context.Background()

	id := mustCreateRequest(t, svc, "rider_pg_a", 2)

	// One open request per rider is enforced by the store query too.
	if _, err := svc.Create(ctx, createCmd("rider_pg_a", 1)); err != ErrActiveRequest {
		t.Fatalf("expected ErrActiveRequest, got %v", err)
	}

	candidates := []CandidateRef{
		{
			TripID:            "trip_pg_1",
			Score:             2.4,
			PickupDistanceKm:  1.1,
			DropoffDistanceKm: 1.3,
			Price:             types.Money{Amount: 890, Currency: "USD"},
			DepartureAt:       time.Now().Add(2 * time.Hour).UTC().Truncate(time.Millisecond),
		},
		{
			TripID: "trip_pg_2",
			Score:  3.9,
			Price:  types.Money{Amount: 1120, Currency: "USD"},
		},
	}
	if _, err := svc.AttachMatches(ctx, id, candidates); err != nil {
		t.Fatalf("attach matches: %v", err)
	}

	got := mustGetRequest(t, svc, id)
	if got.Status != StatusMatching {
		t.Fatalf("expected matching, got %s", got.Status)
	}
	if len(got.Candidates) != 2 || got.Candidates[0].TripID != "trip_pg_1" {
		t.Fatalf("candidate snapshot lost: %+v", got.Candidates)
	}
	if got.Candidates[0].Price.Amount != 890 {
		t.Fatalf("candidate price lost: %+v", got.Candidates[0].Price)
	}

	mustMatch(t, svc, id, "rider_pg_a", "trip_pg_1")
	got = mustGetRequest(t, svc, id)
	if got.Status != StatusMatched || got.MatchedTripID == nil || *got.MatchedTripID != "trip_pg_1" {
		t.Fatalf("match not stored: %+v", got)
	}
	if got.Price == nil || got.Price.Amount != 750 {
		t.Fatalf("price not stored: %+v", got.Price)
	}
	if got.MatchedAt == nil {
		t.Fatal("matched_at not stamped")
	}

	// The rider can raise a new request once the old one resolves.
	if err := svc.MarkCancelled(ctx, id, "rider_pg_a"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Create(ctx, createCmd("rider_pg_a", 1)); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestPGStore_AdvanceWithTrip(t *testing.T) {
	svc := NewService(setupTestPGStore(t))
	ctx := context.Background()

	first := mustCreateRequest(t, svc, "rider_pg_b", 1)
	second := mustCreateRequest(t, svc, "rider_pg_c", 1)
	mustMatch(t, svc, first, "rider_pg_b", "trip_pg_adv")
	mustMatch(t, svc, second, "rider_pg_c", "trip_pg_adv")

	if err := svc.AdvanceWithTrip(ctx, "trip_pg_adv", StatusInProgress); err != nil {
		t.Fatalf("advance in_progress: %v", err)
	}
	assertRequestStatus(t, svc, first, StatusInProgress)
	assertRequestStatus(t, svc, second, StatusInProgress)

	if err := svc.AdvanceWithTrip(ctx, "trip_pg_adv", StatusCompleted); err != nil {
		t.Fatalf("advance completed: %v", err)
	}
	assertRequestStatus(t, svc, first, StatusCompleted)
	assertRequestStatus(t, svc, second, StatusCompleted)

	if got := mustGetRequest(t, svc, first); got.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
}

// README: Concurrency tests for seat reservation (run with -race).
package trip

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// TestConcurrentReserveNoOverbooking launches more single-seat reservations
// than the trip can hold; exactly capacity of them must win.
func TestConcurrentReserveNoOverbooking(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	const capacity = 3
	const attempts = 8
	tripID := mustCreateTrip(t, svc, "d1", capacity)

	start := make(chan struct{})
	errs := make(chan error, attempts)
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		rider := fmt.Sprintf("rider_%d", i)
		wg.Add(1)
		go func(rider string) {
			defer wg.Done()
			<-start
			_, err := svc.ReserveSeats(ctx, tripID, reserveCmd(types.ID(rider), 1))
			errs <- err
		}(rider)
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrInsufficientSeats {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != capacity {
		t.Fatalf("expected exactly %d successes, got %d", capacity, success)
	}

	assertSeats(t, svc, tripID, 0)
	assertInvariant(t, svc, tripID)
}

// TestConcurrentReserveMixedSeatCounts races claims of different sizes; any
// winning subset must fit within capacity.
func TestConcurrentReserveMixedSeatCounts(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	const capacity = 4
	tripID := mustCreateTrip(t, svc, "d1", capacity)

	seatCounts := []int{3, 2, 2, 1, 1}
	type result struct {
		seats int
		err   error
	}

	start := make(chan struct{})
	results := make(chan result, len(seatCounts))
	var wg sync.WaitGroup

	for i, n := range seatCounts {
		rider := fmt.Sprintf("rider_%d", i)
		wg.Add(1)
		go func(rider string, n int) {
			defer wg.Done()
			<-start
			_, err := svc.ReserveSeats(ctx, tripID, reserveCmd(types.ID(rider), n))
			results <- result{seats: n, err: err}
		}(rider, n)
	}

	close(start)
	wg.Wait()
	close(results)

	claimed := 0
	for r := range results {
		if r.err == nil {
			claimed += r.seats
			continue
		}
		if r.err != ErrInsufficientSeats {
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if claimed > capacity {
		t.Fatalf("overbooked: %d seats claimed on capacity %d", claimed, capacity)
	}
	assertInvariant(t, svc, tripID)
}

// TestConcurrentReserveVsRelease interleaves reservations and releases; the
// invariant must hold regardless of the winning order.
func TestConcurrentReserveVsRelease(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	const capacity = 2
	tripID := mustCreateTrip(t, svc, "d1", capacity)
	if _, err := svc.ReserveSeats(ctx, tripID, reserveCmd("rider_a", 2)); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		errs <- svc.ReleaseSeats(ctx, tripID, "rider_a")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, err := svc.ReserveSeats(ctx, tripID, reserveCmd("rider_b", 1))
		errs <- err
	}()

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && err != ErrInsufficientSeats {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assertInvariant(t, svc, tripID)
}

// TestConcurrentStatusTransition races two drivers' start calls; the version
// CAS admits exactly one.
func TestConcurrentStatusTransition(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	tripID := mustCreateTrip(t, svc, "d1", 2)

	const attempts = 4
	start := make(chan struct{})
	errs := make(chan error, attempts)
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- svc.TransitionStatus(ctx, TransitionCommand{
				TripID: tripID, ActorID: "d1", To: StatusInProgress,
			})
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrConflict && err != ErrInvalidTransition {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful transition, got %d", success)
	}

	tr := mustGet(t, svc, tripID)
	if tr.Status != StatusInProgress {
		t.Fatalf("unexpected final status: %s", tr.Status)
	}
}

// TestConcurrentNoShowReleasesOnce races duplicate no-show marks; the seats
// come back exactly once.
func TestConcurrentNoShowReleasesOnce(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	tripID := mustCreateTrip(t, svc, "d1", 3)
	if _, err := svc.ReserveSeats(ctx, tripID, reserveCmd("rider_a", 2)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	const attempts = 4
	start := make(chan struct{})
	errs := make(chan error, attempts)
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- svc.MarkNoShow(ctx, NoShowCommand{
				TripID: tripID, DriverID: "d1", PassengerID: "rider_a",
			})
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrAlreadyResolved {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful no-show, got %d", success)
	}
	assertSeats(t, svc, tripID, 3)
	assertInvariant(t, svc, tripID)
}

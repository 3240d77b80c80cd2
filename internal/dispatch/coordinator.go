// README: Dispatch coordinator; runs cross-module sequences under per-trip locks.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/geo"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/matching"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pool"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pricing"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/request"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/notify"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// ErrBusy reports that a trip's lock could not be taken within the
// configured wait. The operation was not started; callers may retry.
var ErrBusy = errors.New("trip is busy, try again")

type Deps struct {
	Trips    *trip.Service
	Requests *request.Service
	Pools    *pool.Service
	Matcher  *matching.Service
	Pricing  *pricing.Service
	Index    matching.Index
	Sink     notify.Sink
	Logger   *zap.Logger
	// LockWait caps how long a mutation waits for its trip lock; zero
	// means DefaultLockWait.
	LockWait time.Duration
}

// Coordinator is the only entry point for mutations that span more than one
// module. Every such sequence runs under the trip's lock, so seat inventory,
// request state, and pool state move together or not at all. Reads never
// take locks.
type Coordinator struct {
	trips    *trip.Service
	requests *request.Service
	pools    *pool.Service
	matcher  *matching.Service
	pricing  *pricing.Service
	index    matching.Index
	sink     notify.Sink
	locks    *lockSet
	log      *zap.Logger
}

func NewCoordinator(deps Deps) *Coordinator {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		trips:    deps.Trips,
		requests: deps.Requests,
		pools:    deps.Pools,
		matcher:  deps.Matcher,
		pricing:  deps.Pricing,
		index:    deps.Index,
		sink:     deps.Sink,
		locks:    newLockSet(deps.LockWait),
		log:      log,
	}
}

// CreateTrip registers the trip and adds its origin to the search index.
// An index failure only hides the trip from proximity search; the matcher
// re-checks authoritative trip state on every hit.
func (c *Coordinator) CreateTrip(ctx context.Context, cmd trip.CreateCommand) (*trip.Trip, error) {
	t, err := c.trips.Create(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := c.index.AddTrip(ctx, t.ID, t.Origin); err != nil {
		c.log.Warn("trip index add failed",
			zap.String("trip_id", string(t.ID)), zap.Error(err))
	}
	return t, nil
}

// SearchTrips runs a candidate search. Read-only, no locks.
func (c *Coordinator) SearchTrips(ctx context.Context, q matching.Query) ([]matching.Candidate, error) {
	return c.matcher.FindCandidates(ctx, q)
}

// CreateRequest opens a ride request and immediately runs the matcher,
// snapshotting the ranked candidates onto it. Matcher trouble leaves the
// request pending instead of failing the create.
func (c *Coordinator) CreateRequest(ctx context.Context, cmd request.CreateCommand) (*request.Request, error) {
	r, err := c.requests.Create(ctx, cmd)
	if err != nil {
		return nil, err
	}
	cands, err := c.matcher.FindCandidates(ctx, matching.Query{
		Pickup:   cmd.Pickup,
		Dropoff:  cmd.Dropoff,
		MinSeats: cmd.Seats,
	})
	if err != nil {
		c.log.Warn("matcher failed for new request",
			zap.String("request_id", string(r.ID)), zap.Error(err))
		return r, nil
	}
	if len(cands) == 0 {
		return r, nil
	}
	updated, err := c.requests.AttachMatches(ctx, r.ID, toCandidateRefs(cands))
	if err != nil {
		c.log.Warn("attaching matches failed",
			zap.String("request_id", string(r.ID)), zap.Error(err))
		return r, nil
	}
	return updated, nil
}

// GetRequest returns the request for its rider, or for the driver of the
// trip it is matched to.
func (c *Coordinator) GetRequest(ctx context.Context, id, actorID types.ID) (*request.Request, error) {
	r, err := c.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.RiderID == actorID {
		return r, nil
	}
	if r.MatchedTripID != nil {
		t, err := c.trips.Get(ctx, *r.MatchedTripID)
		if err == nil && t.DriverID == actorID {
			return r, nil
		}
	}
	return nil, request.ErrUnauthorized
}

// AcceptMatch books the rider onto the chosen trip: seats are reserved
// under the trip lock, then the request moves to matched with its quoted
// price. If the request update fails after a successful reserve, the seats
// are released again so no claim dangles.
func (c *Coordinator) AcceptMatch(ctx context.Context, requestID, riderID, tripID types.ID) (*request.Request, error) {
	r, err := c.requests.GetOwned(ctx, requestID, riderID)
	if err != nil {
		return nil, err
	}
	if r.Status != request.StatusPending && r.Status != request.StatusMatching {
		return nil, request.ErrInvalidState
	}

	release, err := c.locks.acquire(ctx, tripID)
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := c.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	price := c.quote(r, t)

	if _, err := c.trips.ReserveSeats(ctx, tripID, trip.ReserveCommand{
		PassengerID: riderID,
		Pickup:      r.Pickup,
		Dropoff:     r.Dropoff,
		Seats:       r.Seats,
	}); err != nil {
		return nil, err
	}
	if err := c.requests.MarkMatched(ctx, requestID, riderID, tripID, price); err != nil {
		if relErr := c.trips.ReleaseSeats(ctx, tripID, riderID); relErr != nil {
			c.log.Error("seat release compensation failed",
				zap.String("trip_id", string(tripID)),
				zap.String("request_id", string(requestID)),
				zap.Error(relErr))
		}
		return nil, err
	}

	c.sink.Notify(ctx, t.DriverID, notify.KindRequestUpdate, notify.Payload{
		Title:     "Passenger matched",
		Message:   fmt.Sprintf("A rider booked %d seat(s) on your trip.", r.Seats),
		TripID:    tripID,
		RequestID: requestID,
	})
	return c.requests.Get(ctx, requestID)
}

// CancelRequest cancels a rider's request. Matched and in-progress requests
// release their seats under the trip lock first; open ones cancel directly.
func (c *Coordinator) CancelRequest(ctx context.Context, requestID, riderID types.ID) error {
	r, err := c.requests.GetOwned(ctx, requestID, riderID)
	if err != nil {
		return err
	}
	if r.MatchedTripID == nil {
		return c.requests.MarkCancelled(ctx, requestID, riderID)
	}

	tripID := *r.MatchedTripID
	release, err := c.locks.acquire(ctx, tripID)
	if err != nil {
		return err
	}
	defer release()

	// Re-read under the lock: the trip may have advanced or resolved the
	// request while we waited.
	r, err = c.requests.GetOwned(ctx, requestID, riderID)
	if err != nil {
		return err
	}
	if r.Status == request.StatusCompleted || r.Status == request.StatusCancelled {
		return request.ErrAlreadyResolved
	}
	if err := c.trips.ReleaseSeats(ctx, tripID, riderID); err != nil && !errors.Is(err, trip.ErrNotFound) {
		return err
	}
	if err := c.requests.MarkCancelled(ctx, requestID, riderID); err != nil {
		return err
	}

	if t, err := c.trips.Get(ctx, tripID); err == nil {
		c.sink.Notify(ctx, t.DriverID, notify.KindRequestUpdate, notify.Payload{
			Title:     "Passenger cancelled",
			Message:   "A rider cancelled their booking; the seats are open again.",
			TripID:    tripID,
			RequestID: requestID,
		})
	}
	return nil
}

// StartTrip moves the trip to in_progress and advances every matched
// request in lockstep.
func (c *Coordinator) StartTrip(ctx context.Context, tripID, driverID types.ID) error {
	return c.transitionTrip(ctx, tripID, driverID, trip.StatusInProgress)
}

// CompleteTrip moves the trip to completed, advances the riders' requests,
// and emits completion events for the seats that rode to the end.
func (c *Coordinator) CompleteTrip(ctx context.Context, tripID, driverID types.ID) error {
	return c.transitionTrip(ctx, tripID, driverID, trip.StatusCompleted)
}

// CancelTrip cancels the trip, removes it from search, and cancels every
// request still riding on it.
func (c *Coordinator) CancelTrip(ctx context.Context, tripID, driverID types.ID) error {
	return c.transitionTrip(ctx, tripID, driverID, trip.StatusCancelled)
}

func (c *Coordinator) transitionTrip(ctx context.Context, tripID, driverID types.ID, to trip.Status) error {
	release, err := c.locks.acquire(ctx, tripID)
	if err != nil {
		return err
	}
	defer release()

	if err := c.trips.TransitionStatus(ctx, trip.TransitionCommand{
		TripID:  tripID,
		ActorID: driverID,
		To:      to,
	}); err != nil {
		return err
	}

	// The trip is committed past this point; the cascades below are
	// best-effort and logged rather than unwinding it.
	switch to {
	case trip.StatusInProgress:
		c.advanceRequests(ctx, tripID, request.StatusInProgress)
	case trip.StatusCompleted:
		c.advanceRequests(ctx, tripID, request.StatusCompleted)
		c.emitRemainingCompletions(ctx, tripID)
	case trip.StatusCancelled:
		c.cancelRequestsForTrip(ctx, tripID)
	}

	// Only active trips are searchable.
	if err := c.index.RemoveTrip(ctx, tripID); err != nil {
		c.log.Warn("trip index remove failed",
			zap.String("trip_id", string(tripID)), zap.Error(err))
	}
	c.sink.TripEvent(ctx, notify.TripEvent{
		TripID:     tripID,
		Status:     string(to),
		OccurredAt: time.Now(),
	})
	return nil
}

func (c *Coordinator) advanceRequests(ctx context.Context, tripID types.ID, to request.Status) {
	if err := c.requests.AdvanceWithTrip(ctx, tripID, to); err != nil {
		c.log.Error("request lockstep advance failed",
			zap.String("trip_id", string(tripID)),
			zap.String("to", string(to)),
			zap.Error(err))
	}
}

// emitRemainingCompletions covers assignments that were never marked
// dropped_off: each seat-holding one gets its completion event now.
// Dropped-off assignments already emitted theirs.
func (c *Coordinator) emitRemainingCompletions(ctx context.Context, tripID types.ID) {
	t, err := c.trips.Get(ctx, tripID)
	if err != nil {
		c.log.Error("trip reload for completion events failed",
			zap.String("trip_id", string(tripID)), zap.Error(err))
		return
	}
	now := time.Now()
	for _, a := range t.Assignments {
		if !a.Status.HoldsSeats() || a.Status == trip.AssignmentDroppedOff {
			continue
		}
		c.sink.TripEvent(ctx, notify.TripEvent{
			TripID:      tripID,
			PassengerID: a.PassengerID,
			Seats:       a.Seats,
			IsShared:    a.IsShared,
			OccurredAt:  now,
		})
	}
}

func (c *Coordinator) cancelRequestsForTrip(ctx context.Context, tripID types.ID) {
	cancelled, err := c.requests.CancelForTrip(ctx, tripID)
	if err != nil {
		c.log.Error("request cascade cancel failed",
			zap.String("trip_id", string(tripID)), zap.Error(err))
	}
	for _, r := range cancelled {
		c.sink.Notify(ctx, r.RiderID, notify.KindRequestUpdate, notify.Payload{
			Title:     "Trip cancelled",
			Message:   "The driver cancelled the trip; your request was cancelled with it.",
			TripID:    tripID,
			RequestID: r.ID,
		})
	}
}

// DriverAcceptPool runs the pool driver-acceptance under the trip's lock so
// the seat reserve and the status swap act as one step against concurrent
// bookings.
func (c *Coordinator) DriverAcceptPool(ctx context.Context, poolID, driverID types.ID) error {
	p, err := c.pools.Get(ctx, poolID, driverID)
	if err != nil {
		return err
	}
	release, err := c.locks.acquire(ctx, p.TripID)
	if err != nil {
		return err
	}
	defer release()
	return c.pools.DriverAccept(ctx, poolID, driverID)
}

// NoShowPassenger releases the no-show rider's seats and cancels the
// request that booked them.
func (c *Coordinator) NoShowPassenger(ctx context.Context, cmd trip.NoShowCommand) error {
	release, err := c.locks.acquire(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	defer release()

	if err := c.trips.MarkNoShow(ctx, cmd); err != nil {
		return err
	}
	reqs, err := c.requests.ListByMatchedTrip(ctx, cmd.TripID,
		[]request.Status{request.StatusMatched, request.StatusInProgress})
	if err != nil {
		c.log.Error("no-show request lookup failed",
			zap.String("trip_id", string(cmd.TripID)), zap.Error(err))
		return nil
	}
	for _, r := range reqs {
		if r.RiderID != cmd.PassengerID {
			continue
		}
		if err := c.requests.MarkCancelled(ctx, r.ID, ""); err != nil {
			c.log.Warn("no-show request cancel failed",
				zap.String("request_id", string(r.ID)), zap.Error(err))
			continue
		}
		c.sink.Notify(ctx, r.RiderID, notify.KindRequestUpdate, notify.Payload{
			Title:     "Marked as no-show",
			Message:   "The driver marked you as a no-show; your booking was released.",
			TripID:    cmd.TripID,
			RequestID: r.ID,
		})
	}
	return nil
}

// ProgressPassenger records a pickup or dropoff. A dropoff emits the
// assignment's completion event for downstream consumers.
func (c *Coordinator) ProgressPassenger(ctx context.Context, cmd trip.ProgressCommand) error {
	release, err := c.locks.acquire(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	defer release()

	if err := c.trips.UpdateAssignmentStatus(ctx, cmd); err != nil {
		return err
	}
	if cmd.To != trip.AssignmentDroppedOff {
		return nil
	}
	t, err := c.trips.Get(ctx, cmd.TripID)
	if err != nil {
		c.log.Error("trip reload for dropoff event failed",
			zap.String("trip_id", string(cmd.TripID)), zap.Error(err))
		return nil
	}
	if a := t.AssignmentFor(cmd.PassengerID); a != nil {
		c.sink.TripEvent(ctx, notify.TripEvent{
			TripID:      cmd.TripID,
			PassengerID: cmd.PassengerID,
			Seats:       a.Seats,
			IsShared:    a.IsShared,
			OccurredAt:  time.Now(),
		})
	}
	return nil
}

// ShareTrip toggles pooling availability under the trip lock.
func (c *Coordinator) ShareTrip(ctx context.Context, cmd trip.ShareCommand) error {
	release, err := c.locks.acquire(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	defer release()
	return c.trips.SetShareable(ctx, cmd)
}

// quote prices the trip for the request, preferring the candidate snapshot
// taken at match time over a fresh distance computation.
func (c *Coordinator) quote(r *request.Request, t *trip.Trip) types.Money {
	if cand := r.CandidateFor(t.ID); cand != nil {
		return cand.Price
	}
	dist := geo.DistanceKm(r.Pickup, t.Origin) + geo.DistanceKm(r.Dropoff, t.Destination)
	price, _ := c.pricing.EstimateFromDistance(dist)
	return price
}

func toCandidateRefs(cands []matching.Candidate) []request.CandidateRef {
	refs := make([]request.CandidateRef, 0, len(cands))
	for _, cand := range cands {
		refs = append(refs, request.CandidateRef{
			TripID:            cand.TripID,
			Score:             cand.Score,
			PickupDistanceKm:  cand.PickupDistanceKm,
			DropoffDistanceKm: cand.DropoffDistanceKm,
			Price:             cand.Price,
			DepartureAt:       cand.DepartureAt,
		})
	}
	return refs
}

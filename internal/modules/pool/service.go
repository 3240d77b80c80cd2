// README: Pooling negotiator; owns the three-party acceptance protocol.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/notify"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

var (
	ErrNotFound          = errors.New("pool request not found")
	ErrNotShareable      = errors.New("trip is not open for pooling")
	ErrInvalidTransition = errors.New("invalid pool request transition")
	ErrAlreadyResolved   = errors.New("pool request already resolved")
	ErrUnauthorized      = errors.New("actor not allowed for this pool request")
	ErrConflict          = errors.New("pool request state conflict")
	ErrBadRequest        = errors.New("bad request")
)

// TripDirectory is the read side of the trip inventory the negotiator needs.
type TripDirectory interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

// SeatReserver claims and frees seats during driver acceptance. The caller
// is expected to hold the trip's dispatch lock around DriverAccept so the
// reserve and the status swap act as one step.
type SeatReserver interface {
	ReserveSeats(ctx context.Context, tripID types.ID, cmd trip.ReserveCommand) (*trip.Assignment, error)
	ReleaseSeats(ctx context.Context, tripID, passengerID types.ID) error
}

type Service struct {
	store Store
	trips TripDirectory
	seats SeatReserver
	sink  notify.Sink
}

func NewService(store Store, trips TripDirectory, seats SeatReserver, sink notify.Sink) *Service {
	return &Service{store: store, trips: trips, seats: seats, sink: sink}
}

type CreateCommand struct {
	TripID      types.ID
	RequesterID types.ID
	Pickup      types.Point
	Dropoff     types.Point
	Seats       int
}

// Create opens a negotiation against a shareable trip. The primary rider is
// pinned at creation time: the trip's first seated passenger, absent when
// the trip has none yet.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*PoolRequest, error) {
	if cmd.RequesterID == "" || cmd.Seats < 1 {
		return nil, ErrBadRequest
	}
	if err := cmd.Pickup.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	if err := cmd.Dropoff.Validate(); err != nil {
		return nil, ErrBadRequest
	}

	t, err := s.trips.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if !t.Shareable {
		return nil, ErrNotShareable
	}
	if t.Status != trip.StatusActive && t.Status != trip.StatusInProgress {
		return nil, trip.ErrInvalidState
	}
	if t.AvailableSeats < cmd.Seats {
		return nil, trip.ErrInsufficientSeats
	}
	if cmd.RequesterID == t.DriverID {
		return nil, fmt.Errorf("%w: requester is the trip driver", ErrBadRequest)
	}
	if a := t.AssignmentFor(cmd.RequesterID); a != nil && assignmentHolds(a) {
		return nil, fmt.Errorf("%w: requester already rides this trip", ErrBadRequest)
	}

	now := time.Now()
	p := &PoolRequest{
		ID:             types.NewID(),
		TripID:         t.ID,
		RequesterID:    cmd.RequesterID,
		PrimaryRiderID: t.FirstPassenger(),
		DriverID:       t.DriverID,
		Pickup:         cmd.Pickup,
		Dropoff:        cmd.Dropoff,
		Seats:          cmd.Seats,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	if p.PrimaryRiderID != nil {
		s.sink.Notify(ctx, *p.PrimaryRiderID, notify.KindPoolRequest, notify.Payload{
			Title:         "New Pool Request",
			Message:       "Someone wants to share your ride",
			TripID:        p.TripID,
			PoolRequestID: p.ID,
		})
	}
	s.sink.Notify(ctx, p.DriverID, notify.KindPoolRequest, notify.Payload{
		Title:         "New Pool Request",
		Message:       "A passenger wants to join your trip",
		TripID:        p.TripID,
		PoolRequestID: p.ID,
	})
	return p, nil
}

// Get returns the pool request to any of its three parties.
func (s *Service) Get(ctx context.Context, id, actorID types.ID) (*PoolRequest, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !involves(p, actorID) {
		return nil, ErrUnauthorized
	}
	return p, nil
}

// PrimaryRiderAccept clears the request for the driver's decision. It moves
// no seats.
func (s *Service) PrimaryRiderAccept(ctx context.Context, id, riderID types.ID) error {
	p, err := s.primaryActionable(ctx, id, riderID)
	if err != nil {
		return err
	}
	if !CanTransition(p.Status, StatusPrimaryRiderAccepted) {
		return ErrInvalidTransition
	}
	if err := s.swap(ctx, p, StatusPrimaryRiderAccepted, ""); err != nil {
		return err
	}
	s.sink.Notify(ctx, p.DriverID, notify.KindPoolRequestUpdate, notify.Payload{
		Title:         "Pool Request Update",
		Message:       "Primary rider has accepted the pool request",
		TripID:        p.TripID,
		PoolRequestID: p.ID,
	})
	return nil
}

// PrimaryRiderReject ends the negotiation before the driver sees it.
func (s *Service) PrimaryRiderReject(ctx context.Context, id, riderID types.ID) error {
	p, err := s.primaryActionable(ctx, id, riderID)
	if err != nil {
		return err
	}
	if !CanTransition(p.Status, StatusRejectedByPrimaryRider) {
		return ErrInvalidTransition
	}
	if err := s.swap(ctx, p, StatusRejectedByPrimaryRider, ""); err != nil {
		return err
	}
	s.sink.Notify(ctx, p.RequesterID, notify.KindPoolRequestUpdate, notify.Payload{
		Title:         "Pool Request Update",
		Message:       "Your pool request was declined by the primary rider",
		TripID:        p.TripID,
		PoolRequestID: p.ID,
	})
	return nil
}

// DriverAccept reserves the requester's seats and closes the negotiation.
// With a primary rider set, the request must have been cleared first; the
// pending → accepted shortcut exists only for trips with no seated rider.
// A reserve failure leaves the request in its prior state.
func (s *Service) DriverAccept(ctx context.Context, id, driverID types.ID) error {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.DriverID != driverID {
		return ErrUnauthorized
	}
	if p.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if p.PrimaryRiderID != nil && p.Status == StatusPending {
		return ErrInvalidTransition
	}
	if !CanTransition(p.Status, StatusAccepted) {
		return ErrInvalidTransition
	}

	if _, err := s.seats.ReserveSeats(ctx, p.TripID, trip.ReserveCommand{
		PassengerID:     p.RequesterID,
		Pickup:          p.Pickup,
		Dropoff:         p.Dropoff,
		Seats:           p.Seats,
		IsShared:        true,
		AllowInProgress: true,
	}); err != nil {
		return err
	}
	if err := s.swap(ctx, p, StatusAccepted, ""); err != nil {
		// Seats were claimed for a negotiation that moved under us; put
		// them back before reporting.
		_ = s.seats.ReleaseSeats(ctx, p.TripID, p.RequesterID)
		return err
	}

	s.sink.Notify(ctx, p.RequesterID, notify.KindPoolRequestUpdate, notify.Payload{
		Title:         "Pool Request Accepted",
		Message:       "Your pool request has been accepted",
		TripID:        p.TripID,
		PoolRequestID: p.ID,
	})
	if p.PrimaryRiderID != nil {
		s.sink.Notify(ctx, *p.PrimaryRiderID, notify.KindPoolUpdate, notify.Payload{
			Title:   "New Pool Passenger",
			Message: "A new passenger will be joining your ride",
			TripID:  p.TripID,
		})
	}
	return nil
}

// DriverReject ends the negotiation with an optional reason.
func (s *Service) DriverReject(ctx context.Context, id, driverID types.ID, reason string) error {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.DriverID != driverID {
		return ErrUnauthorized
	}
	if p.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if !CanTransition(p.Status, StatusRejectedByDriver) {
		return ErrInvalidTransition
	}
	if err := s.swap(ctx, p, StatusRejectedByDriver, reason); err != nil {
		return err
	}

	msg := "Your pool request was declined by the driver"
	if reason != "" {
		msg = msg + ": " + reason
	}
	s.sink.Notify(ctx, p.RequesterID, notify.KindPoolRequestUpdate, notify.Payload{
		Title:         "Pool Request Declined",
		Message:       msg,
		TripID:        p.TripID,
		PoolRequestID: p.ID,
	})
	if p.PrimaryRiderID != nil && p.Status == StatusPrimaryRiderAccepted {
		s.sink.Notify(ctx, *p.PrimaryRiderID, notify.KindPoolUpdate, notify.Payload{
			Title:   "Pool Request Update",
			Message: "Driver declined the pool request",
			TripID:  p.TripID,
		})
	}
	return nil
}

// ListByRequester returns the user's own pool requests, newest first.
func (s *Service) ListByRequester(ctx context.Context, requesterID types.ID) ([]*PoolRequest, error) {
	if requesterID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByRequester(ctx, requesterID)
}

// ListIncoming returns the pool requests currently waiting on this user's
// decision, whether as primary rider or as driver, newest first.
func (s *Service) ListIncoming(ctx context.Context, actorID types.ID) ([]*PoolRequest, error) {
	if actorID == "" {
		return nil, ErrBadRequest
	}
	asPrimary, err := s.store.ListAwaitingPrimary(ctx, actorID)
	if err != nil {
		return nil, err
	}
	asDriver, err := s.store.ListAwaitingDriver(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := append(asPrimary, asDriver...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PendingCount reports how many pool requests on the trip still wait on the
// caller: for the driver, everything not yet resolved; for the primary
// rider, those awaiting their own clearance.
func (s *Service) PendingCount(ctx context.Context, tripID, actorID types.ID) (int, error) {
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return 0, err
	}
	switch {
	case t.DriverID == actorID:
		open, err := s.store.ListByTrip(ctx, tripID, []Status{StatusPending, StatusPrimaryRiderAccepted})
		if err != nil {
			return 0, err
		}
		return len(open), nil
	default:
		a := t.AssignmentFor(actorID)
		if a == nil || !assignmentHolds(a) {
			return 0, ErrUnauthorized
		}
		pending, err := s.store.ListByTrip(ctx, tripID, []Status{StatusPending})
		if err != nil {
			return 0, err
		}
		n := 0
		for _, p := range pending {
			if p.PrimaryRiderID != nil && *p.PrimaryRiderID == actorID {
				n++
			}
		}
		return n, nil
	}
}

// ListForTrip returns the trip's pool requests to its driver.
func (s *Service) ListForTrip(ctx context.Context, tripID, driverID types.ID, statuses []Status) ([]*PoolRequest, error) {
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, ErrUnauthorized
	}
	return s.store.ListByTrip(ctx, tripID, statuses)
}

func (s *Service) primaryActionable(ctx context.Context, id, riderID types.ID) (*PoolRequest, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.PrimaryRiderID == nil || *p.PrimaryRiderID != riderID {
		return nil, ErrUnauthorized
	}
	if p.Status.Terminal() {
		return nil, ErrAlreadyResolved
	}
	return p, nil
}

// swap applies the CAS transition and classifies a miss by re-reading.
func (s *Service) swap(ctx context.Context, p *PoolRequest, to Status, reason string) error {
	ok, err := s.store.UpdateStatus(ctx, p.ID, p.Status, to, p.StatusVersion, reason)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	cur, err := s.store.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if cur.Status.Terminal() {
		return ErrAlreadyResolved
	}
	return ErrConflict
}

func involves(p *PoolRequest, actorID types.ID) bool {
	if actorID == p.RequesterID || actorID == p.DriverID {
		return true
	}
	return p.PrimaryRiderID != nil && *p.PrimaryRiderID == actorID
}

func assignmentHolds(a *trip.Assignment) bool {
	return a.Status.HoldsSeats()
}

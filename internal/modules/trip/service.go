// README: Trip inventory service; owns seat accounting and status transitions.
package trip

import (
	"context"
	"errors"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

var (
	ErrNotFound          = errors.New("trip not found")
	ErrInvalidState      = errors.New("operation not allowed in current trip state")
	ErrInvalidTransition = errors.New("invalid trip status transition")
	ErrInsufficientSeats = errors.New("insufficient seats")
	ErrAlreadyResolved   = errors.New("assignment already resolved")
	ErrUnauthorized      = errors.New("actor not allowed for this trip")
	ErrConflict          = errors.New("trip state conflict")
	ErrBadRequest        = errors.New("bad request")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	DriverID    types.ID
	Origin      types.Point
	Destination types.Point
	DepartureAt time.Time
	Capacity    int
	Shareable   bool
}

type ReserveCommand struct {
	PassengerID types.ID
	Pickup      types.Point
	Dropoff     types.Point
	Seats       int
	IsShared    bool
	// AllowInProgress widens the legal states for pooling joins, which may
	// land while the trip is already underway.
	AllowInProgress bool
}

type NoShowCommand struct {
	TripID      types.ID
	DriverID    types.ID
	PassengerID types.ID
}

type ProgressCommand struct {
	TripID      types.ID
	DriverID    types.ID
	PassengerID types.ID
	To          AssignmentStatus
}

type TransitionCommand struct {
	TripID types.ID
	// ActorID must match the trip's driver; empty means a system actor.
	ActorID types.ID
	To      Status
}

type ShareCommand struct {
	TripID    types.ID
	ActorID   types.ID
	Shareable bool
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.DriverID == "" || cmd.Capacity < 1 {
		return nil, ErrBadRequest
	}
	if err := cmd.Origin.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	if err := cmd.Destination.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	if cmd.DepartureAt.IsZero() || cmd.DepartureAt.Before(time.Now()) {
		return nil, ErrBadRequest
	}

	now := time.Now()
	t := &Trip{
		ID:             types.NewID(),
		DriverID:       cmd.DriverID,
		Origin:         cmd.Origin,
		Destination:    cmd.Destination,
		DepartureAt:    cmd.DepartureAt,
		Capacity:       cmd.Capacity,
		AvailableSeats: cmd.Capacity,
		Status:         StatusActive,
		StatusVersion:  0,
		Shareable:      cmd.Shareable,
		CreatedAt:      now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		TripID:     t.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusActive,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  now,
	})
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	if driverID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByDriver(ctx, driverID)
}

func (s *Service) ListActive(ctx context.Context) ([]*Trip, error) {
	return s.store.ListActive(ctx)
}

// ReserveSeats claims seats for a passenger. The store applies the seat
// decrement and the assignment append as one conditional step, so two racing
// reservations can never jointly exceed the available count.
func (s *Service) ReserveSeats(ctx context.Context, tripID types.ID, cmd ReserveCommand) (*Assignment, error) {
	if cmd.PassengerID == "" || cmd.Seats < 1 {
		return nil, ErrBadRequest
	}
	if err := cmd.Pickup.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	if err := cmd.Dropoff.Validate(); err != nil {
		return nil, ErrBadRequest
	}

	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	allowed := []Status{StatusActive}
	if cmd.AllowInProgress {
		allowed = append(allowed, StatusInProgress)
	}
	if !statusIn(t.Status, allowed) {
		return nil, ErrInvalidState
	}
	if t.AvailableSeats < cmd.Seats {
		return nil, ErrInsufficientSeats
	}

	a := &Assignment{
		ID:          types.NewID(),
		TripID:      tripID,
		PassengerID: cmd.PassengerID,
		Pickup:      cmd.Pickup,
		Dropoff:     cmd.Dropoff,
		Seats:       cmd.Seats,
		Status:      AssignmentConfirmed,
		IsShared:    cmd.IsShared,
		CreatedAt:   time.Now(),
	}
	ok, err := s.store.InsertAssignment(ctx, tripID, a, allowed)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The conditional insert lost a race. Re-read to report the right kind.
		t, err = s.store.Get(ctx, tripID)
		if err != nil {
			return nil, err
		}
		if !statusIn(t.Status, allowed) {
			return nil, ErrInvalidState
		}
		return nil, ErrInsufficientSeats
	}
	return a, nil
}

// ReleaseSeats frees a passenger's claim. Releasing a passenger who holds no
// seats (never assigned, or already released) is a no-op.
func (s *Service) ReleaseSeats(ctx context.Context, tripID, passengerID types.ID) error {
	if passengerID == "" {
		return ErrBadRequest
	}
	if _, err := s.store.Get(ctx, tripID); err != nil {
		return err
	}
	_, _, err := s.store.ReleaseAssignment(ctx, tripID, passengerID, AssignmentCancelled)
	return err
}

// MarkNoShow releases the passenger's seats exactly once and records the
// no-show sub-status. A repeat call fails with ErrAlreadyResolved.
func (s *Service) MarkNoShow(ctx context.Context, cmd NoShowCommand) error {
	if cmd.DriverID == "" || cmd.PassengerID == "" {
		return ErrBadRequest
	}
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrUnauthorized
	}

	released, _, err := s.store.ReleaseAssignment(ctx, cmd.TripID, cmd.PassengerID, AssignmentNoShow)
	if err != nil {
		return err
	}
	if released {
		return nil
	}
	a := t.AssignmentFor(cmd.PassengerID)
	if a == nil {
		return ErrNotFound
	}
	return ErrAlreadyResolved
}

// UpdateAssignmentStatus applies a pickup/dropoff progress update.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, cmd ProgressCommand) error {
	if cmd.DriverID == "" || cmd.PassengerID == "" {
		return ErrBadRequest
	}
	if cmd.To != AssignmentPickedUp && cmd.To != AssignmentDroppedOff {
		return ErrBadRequest
	}
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.DriverID != cmd.DriverID {
		return ErrUnauthorized
	}
	a := t.AssignmentFor(cmd.PassengerID)
	if a == nil {
		return ErrNotFound
	}
	if !CanTransitionAssignment(a.Status, cmd.To) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateAssignmentStatus(ctx, cmd.TripID, cmd.PassengerID, a.Status, cmd.To)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// TransitionStatus moves the trip along active → in_progress → completed,
// with cancellation allowed from both non-terminal states. Completing or
// cancelling never releases seats: assignments keep their history.
func (s *Service) TransitionStatus(ctx context.Context, cmd TransitionCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if cmd.ActorID != "" && t.DriverID != cmd.ActorID {
		return ErrUnauthorized
	}
	if !CanTransition(t.Status, cmd.To) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, cmd.To, t.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	actorType := "system"
	var actorID *types.ID
	if cmd.ActorID != "" {
		actorType = "driver"
		actorID = &cmd.ActorID
	}
	_ = s.store.AppendEvent(ctx, &Event{
		TripID:     t.ID,
		FromStatus: t.Status,
		ToStatus:   cmd.To,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

// SetShareable opens or closes the trip for pooling. The driver may always
// flip it; an assigned passenger may too (the first rider often opens the
// trip for sharing on the driver's behalf).
func (s *Service) SetShareable(ctx context.Context, cmd ShareCommand) error {
	if cmd.ActorID == "" {
		return ErrBadRequest
	}
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return ErrInvalidState
	}
	if t.DriverID != cmd.ActorID {
		a := t.AssignmentFor(cmd.ActorID)
		if a == nil || !a.Status.HoldsSeats() {
			return ErrUnauthorized
		}
	}
	ok, err := s.store.SetShareable(ctx, cmd.TripID, cmd.Shareable)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	return nil
}

func statusIn(s Status, list []Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

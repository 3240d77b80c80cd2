// README: Trip aggregate, seat assignments, and status definitions.
package trip

import (
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type AssignmentStatus string

const (
	AssignmentConfirmed  AssignmentStatus = "confirmed"
	AssignmentPickedUp   AssignmentStatus = "picked_up"
	AssignmentDroppedOff AssignmentStatus = "dropped_off"
	AssignmentNoShow     AssignmentStatus = "no_show"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

type Trip struct {
	ID             types.ID
	DriverID       types.ID
	Origin         types.Point
	Destination    types.Point
	DepartureAt    time.Time
	Capacity       int
	AvailableSeats int
	Status         Status
	StatusVersion  int
	Shareable      bool
	Assignments    []Assignment
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
}

// Assignment is one passenger's claim on a trip's seats. It is owned by the
// trip row and mutated only through the inventory operations.
type Assignment struct {
	ID          types.ID
	TripID      types.ID
	PassengerID types.ID
	Pickup      types.Point
	Dropoff     types.Point
	Seats       int
	Status      AssignmentStatus
	IsShared    bool
	CreatedAt   time.Time
}

type Event struct {
	ID         int64
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the trip state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusActive:     {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedAssignmentTransitions covers the passenger progress sub-states.
var AllowedAssignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentConfirmed: {AssignmentPickedUp, AssignmentNoShow, AssignmentCancelled},
	AssignmentPickedUp:  {AssignmentDroppedOff, AssignmentCancelled},
}

func CanTransitionAssignment(from, to AssignmentStatus) bool {
	next, ok := AllowedAssignmentTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// HoldsSeats reports whether an assignment in this status still counts
// against the trip's available seats.
func (s AssignmentStatus) HoldsSeats() bool {
	return s != AssignmentCancelled && s != AssignmentNoShow
}

// SeatsHeld sums the seats of assignments that still count against capacity.
func (t *Trip) SeatsHeld() int {
	held := 0
	for _, a := range t.Assignments {
		if a.Status.HoldsSeats() {
			held += a.Seats
		}
	}
	return held
}

// AssignmentFor returns the passenger's assignment, preferring one that
// still holds seats over released history rows. Returns nil when the
// passenger has never been assigned.
func (t *Trip) AssignmentFor(passengerID types.ID) *Assignment {
	var last *Assignment
	for i := range t.Assignments {
		if t.Assignments[i].PassengerID != passengerID {
			continue
		}
		if t.Assignments[i].Status.HoldsSeats() {
			return &t.Assignments[i]
		}
		last = &t.Assignments[i]
	}
	return last
}

// FirstPassenger returns the earliest passenger still holding seats, or nil.
// Assignments are kept in insertion order by every store implementation.
func (t *Trip) FirstPassenger() *types.ID {
	for i := range t.Assignments {
		if t.Assignments[i].Status.HoldsSeats() {
			id := t.Assignments[i].PassengerID
			return &id
		}
	}
	return nil
}

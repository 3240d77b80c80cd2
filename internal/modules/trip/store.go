package trip

import (
	"context"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// Store persists trips and their assignments. Implementations must apply
// each mutating call as a single atomic unit against one trip so that the
// seat invariant (available_seats + held assignment seats == capacity)
// cannot be observed broken, even without the dispatch-level lock.
type Store interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error)
	ListActive(ctx context.Context) ([]*Trip, error)

	// InsertAssignment decrements available seats and appends the assignment
	// in one step, iff available_seats >= a.Seats and the trip status is in
	// allowed. Returns false (and no change) when the condition fails.
	InsertAssignment(ctx context.Context, tripID types.ID, a *Assignment, allowed []Status) (bool, error)

	// ReleaseAssignment moves the passenger's seat-holding assignment to the
	// given released status and refunds its seats in one step. Returns
	// released=false (and no change) when the passenger holds no seats.
	ReleaseAssignment(ctx context.Context, tripID, passengerID types.ID, to AssignmentStatus) (released bool, seats int, err error)

	// UpdateAssignmentStatus applies a progress transition guarded by the
	// current sub-status. Seat counts are untouched.
	UpdateAssignmentStatus(ctx context.Context, tripID, passengerID types.ID, from, to AssignmentStatus) (bool, error)

	// UpdateStatus is a compare-and-swap on (status, status_version).
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)

	// SetShareable flips the flag iff the trip is still active or in progress.
	SetShareable(ctx context.Context, id types.ID, shareable bool) (bool, error)

	AppendEvent(ctx context.Context, e *Event) error
}

package request

import (
	"context"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// StatusUpdate carries the optional fields stamped together with a status
// CAS; nil fields leave the stored values untouched.
type StatusUpdate struct {
	MatchedTripID *types.ID
	Price         *types.Money
}

type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	ListByRider(ctx context.Context, riderID types.ID) ([]*Request, error)

	// ListByMatchedTrip returns requests bound to the trip in the given
	// statuses, for lockstep advancement.
	ListByMatchedTrip(ctx context.Context, tripID types.ID, statuses []Status) ([]*Request, error)

	// HasOpenByRider reports whether the rider has a non-terminal request.
	HasOpenByRider(ctx context.Context, riderID types.ID) (bool, error)

	// UpdateStatus is a compare-and-swap on (status, status_version).
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, set StatusUpdate) (bool, error)

	// SetCandidates replaces the candidate snapshot under the same CAS guard.
	SetCandidates(ctx context.Context, id types.ID, from, to Status, version int, candidates []CandidateRef) (bool, error)
}

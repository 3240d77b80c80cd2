package pool

import (
	"context"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type Store interface {
	Create(ctx context.Context, p *PoolRequest) error
	Get(ctx context.Context, id types.ID) (*PoolRequest, error)
	ListByRequester(ctx context.Context, requesterID types.ID) ([]*PoolRequest, error)

	// ListByTrip returns the trip's pool requests, optionally narrowed to a
	// status set; an empty set means all.
	ListByTrip(ctx context.Context, tripID types.ID, statuses []Status) ([]*PoolRequest, error)

	// ListAwaitingPrimary returns pending requests whose primary rider is the
	// given user.
	ListAwaitingPrimary(ctx context.Context, riderID types.ID) ([]*PoolRequest, error)

	// ListAwaitingDriver returns requests the driver can act on now: cleared
	// by the primary rider, or pending with no primary rider set.
	ListAwaitingDriver(ctx context.Context, driverID types.ID) ([]*PoolRequest, error)

	// UpdateStatus is a compare-and-swap on (status, status_version); reason
	// is stored alongside rejections and ignored when empty.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason string) (bool, error)
}

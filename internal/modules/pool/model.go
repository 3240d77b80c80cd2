// README: Pool request aggregate and negotiation state definitions.
package pool

import (
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type Status string

const (
	StatusPending                Status = "pending"
	StatusPrimaryRiderAccepted   Status = "primary_rider_accepted"
	StatusAccepted               Status = "accepted"
	StatusRejectedByPrimaryRider Status = "rejected_by_primary_rider"
	StatusRejectedByDriver       Status = "rejected_by_driver"
)

// PoolRequest is one passenger's bid to join an existing trip. The primary
// rider (the trip's first seated passenger at creation time, when any) and
// the driver each get a say; seats move only on the driver's acceptance.
type PoolRequest struct {
	ID              types.ID
	TripID          types.ID
	RequesterID     types.ID
	PrimaryRiderID  *types.ID
	DriverID        types.ID
	Pickup          types.Point
	Dropoff         types.Point
	Seats           int
	Status          Status
	RejectionReason string
	StatusVersion   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllowedTransitions represents the negotiation flow as code. The
// pending → accepted edge is only taken when the request has no primary
// rider; with one set, acceptance must pass through primary_rider_accepted.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {
		StatusPrimaryRiderAccepted,
		StatusAccepted,
		StatusRejectedByPrimaryRider,
		StatusRejectedByDriver,
	},
	StatusPrimaryRiderAccepted: {
		StatusAccepted,
		StatusRejectedByDriver,
	},
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

// Terminal reports whether the negotiation is over.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejectedByPrimaryRider, StatusRejectedByDriver:
		return true
	}
	return false
}

// AwaitsDriver reports whether the next decision belongs to the driver.
func (p *PoolRequest) AwaitsDriver() bool {
	if p.Status == StatusPrimaryRiderAccepted {
		return true
	}
	return p.Status == StatusPending && p.PrimaryRiderID == nil
}

// AwaitsPrimaryRider reports whether the next decision belongs to the
// primary rider.
func (p *PoolRequest) AwaitsPrimaryRider() bool {
	return p.Status == StatusPending && p.PrimaryRiderID != nil
}

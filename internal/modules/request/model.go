// README: Ride request aggregate and status definitions.
package request

import (
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusMatching   Status = "matching"
	StatusMatched    Status = "matched"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// TopCandidates is how many ranked candidates are snapshotted on a request.
const TopCandidates = 5

type Request struct {
	ID            types.ID
	RiderID       types.ID
	Pickup        types.Point
	Dropoff       types.Point
	Seats         int
	Status        Status
	StatusVersion int
	MatchedTripID *types.ID
	Price         *types.Money
	Candidates    []CandidateRef
	CreatedAt     time.Time
	MatchedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// CandidateRef is the snapshot of one ranked match stored on the request.
type CandidateRef struct {
	TripID            types.ID    `json:"trip_id"`
	Score             float64     `json:"score"`
	PickupDistanceKm  float64     `json:"pickup_distance_km"`
	DropoffDistanceKm float64     `json:"dropoff_distance_km"`
	Price             types.Money `json:"price"`
	DepartureAt       time.Time   `json:"departure_at"`
}

// AllowedTransitions represents the request state flow as code. The
// matching self-loop covers re-running the matcher on an open request.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusMatching, StatusMatched, StatusCancelled},
	StatusMatching:   {StatusMatching, StatusMatched, StatusCancelled},
	StatusMatched:    {StatusInProgress, StatusCancelled},
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

// CandidateFor returns the stored candidate for a trip, or nil.
func (r *Request) CandidateFor(tripID types.ID) *CandidateRef {
	for i := range r.Candidates {
		if r.Candidates[i].TripID == tripID {
			return &r.Candidates[i]
		}
	}
	return nil
}

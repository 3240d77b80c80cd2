// README: Proximity matcher: geo index lookup, filtering, scoring, ranking.
package matching

import (
	"context"
	"errors"
	"sort"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/geo"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

var ErrBadRequest = errors.New("bad request")

// Index answers coarse proximity queries over trip origins. Results may be
// stale; callers re-check distances against authoritative trip state.
type Index interface {
	AddTrip(ctx context.Context, tripID types.ID, origin types.Point) error
	RemoveTrip(ctx context.Context, tripID types.ID) error
	NearbyTripIDs(ctx context.Context, origin types.Point, radiusKm float64) ([]types.ID, error)
}

// TripSource loads authoritative trip state for candidate filtering.
type TripSource interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

// PriceEstimator quotes a per-seat price from road distance.
type PriceEstimator interface {
	EstimateFromDistance(distanceKm float64) (types.Money, float64)
}

type Service struct {
	index   Index
	trips   TripSource
	pricing PriceEstimator

	defaultRadiusKm float64
}

func NewService(index Index, trips TripSource, pricing PriceEstimator, defaultRadiusKm float64) *Service {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultRadiusKm
	}
	return &Service{index: index, trips: trips, pricing: pricing, defaultRadiusKm: defaultRadiusKm}
}

// FindCandidates ranks active trips near the query's pickup point. Results are
// computed fresh on every call; nothing is cached or reserved.
func (s *Service) FindCandidates(ctx context.Context, q Query) ([]Candidate, error) {
	if err := q.Pickup.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	if err := q.Dropoff.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	radius := q.RadiusKm
	if radius <= 0 {
		radius = s.defaultRadiusKm
	}
	minSeats := q.MinSeats
	if minSeats < 1 {
		minSeats = 1
	}

	ids, err := s.index.NearbyTripIDs(ctx, q.Pickup, radius)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		t, err := s.trips.Get(ctx, id)
		if errors.Is(err, trip.ErrNotFound) {
			continue // stale index entry
		}
		if err != nil {
			return nil, err
		}
		if t.Status != trip.StatusActive {
			continue
		}
		if t.AvailableSeats < minSeats {
			continue
		}
		pickupDist := geo.DistanceKm(q.Pickup, t.Origin)
		dropoffDist := geo.DistanceKm(q.Dropoff, t.Destination)
		if pickupDist > radius || dropoffDist > radius {
			continue
		}
		if q.DepartureAround != nil {
			d := t.DepartureAt.Sub(*q.DepartureAround)
			if d < 0 {
				d = -d
			}
			if d > departureWindow {
				continue
			}
		}
		price, _ := s.pricing.EstimateFromDistance(pickupDist + dropoffDist)
		out = append(out, Candidate{
			TripID:            t.ID,
			DriverID:          t.DriverID,
			DepartureAt:       t.DepartureAt,
			AvailableSeats:    t.AvailableSeats,
			Shareable:         t.Shareable,
			PickupDistanceKm:  pickupDist,
			DropoffDistanceKm: dropoffDist,
			Score:             pickupDist + dropoffDist,
			Price:             price,
		})
	}

	// Pre-sorting by trip id and then applying the stable distance sort
	// gives equal-score candidates a deterministic id order.
	sort.Slice(out, func(i, j int) bool { return out[i].TripID < out[j].TripID })
	geo.SortByDistance(out, func(c Candidate) float64 { return c.Score })
	return out, nil
}

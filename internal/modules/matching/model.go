// README: Matcher query and ranked candidate definitions.
package matching

import (
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// Query describes one candidate search. RadiusKm <= 0 falls back to the
// service's configured default.
type Query struct {
	Pickup   types.Point
	Dropoff  types.Point
	RadiusKm float64
	// DepartureAround, when set, keeps only trips departing within
	// departureWindow of the given time.
	DepartureAround *time.Time
	// MinSeats keeps only trips with at least this many open seats. Zero
	// means one.
	MinSeats int
}

// Candidate is one ranked trip that could serve the query. Lower scores are
// better matches.
type Candidate struct {
	TripID            types.ID    `json:"trip_id"`
	DriverID          types.ID    `json:"driver_id"`
	DepartureAt       time.Time   `json:"departure_at"`
	AvailableSeats    int         `json:"available_seats"`
	Shareable         bool        `json:"shareable"`
	PickupDistanceKm  float64     `json:"pickup_distance_km"`
	DropoffDistanceKm float64     `json:"dropoff_distance_km"`
	Score             float64     `json:"score"`
	Price             types.Money `json:"price"`
}

const (
	// DefaultRadiusKm bounds both the origin proximity search and the
	// dropoff distance check when the query does not set a radius.
	DefaultRadiusKm = 5.0
	// departureWindow is the tolerance around a requested departure time.
	departureWindow = 2 * time.Hour
)

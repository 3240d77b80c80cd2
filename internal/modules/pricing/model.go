// README: Fare rate definition and quote result.
package pricing

import "github.com/shreyasss-12/Thank-You-Beyonc/internal/types"

// Rate holds the fare components in whole cents.
type Rate struct {
	BaseFare int64
	PerKm    int64
	PerMin   int64
	Currency string
}

// DefaultRate is the flat tariff applied to every quote.
var DefaultRate = Rate{
	BaseFare: 250,
	PerKm:    150,
	PerMin:   25,
	Currency: "USD",
}

// assumedSpeedKmh derives a duration when no live estimate is available.
const assumedSpeedKmh = 30.0

type Quote struct {
	Fare        types.Money
	DistanceKm  float64
	DurationMin float64
}

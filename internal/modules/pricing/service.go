// README: Pricing service computes fare estimates.
package pricing

import (
	"context"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/geo"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// DurationProvider returns a live travel duration between two points.
// Implementations may call an external routing API; a nil provider is valid
// and falls back to the assumed-speed derivation.
type DurationProvider interface {
	TravelDuration(ctx context.Context, origin, destination types.Point) (time.Duration, error)
}

type Service struct {
	rate      Rate
	durations DurationProvider
}

func NewService(rate Rate, durations DurationProvider) *Service {
	return &Service{rate: rate, durations: durations}
}

// Estimate computes the fare for a known distance and duration.
func (s *Service) Estimate(distanceKm, durationMin float64) types.Money {
	amount := float64(s.rate.BaseFare)/100 +
		float64(s.rate.PerKm)/100*distanceKm +
		float64(s.rate.PerMin)/100*durationMin
	return types.MoneyFromFloat(amount, s.rate.Currency)
}

// EstimateFromDistance derives the duration from the assumed average speed
// and returns the fare together with the derived duration in minutes.
func (s *Service) EstimateFromDistance(distanceKm float64) (types.Money, float64) {
	durationMin := distanceKm / assumedSpeedKmh * 60
	return s.Estimate(distanceKm, durationMin), durationMin
}

// QuoteRoute prices the journey between two points. When a duration provider
// is configured its live estimate replaces the assumed-speed derivation;
// provider errors fall back silently to the derived figure.
func (s *Service) QuoteRoute(ctx context.Context, origin, destination types.Point) Quote {
	distanceKm := geo.DistanceKm(origin, destination)
	fare, durationMin := s.EstimateFromDistance(distanceKm)
	if s.durations != nil {
		if d, err := s.durations.TravelDuration(ctx, origin, destination); err == nil && d > 0 {
			durationMin = d.Minutes()
			fare = s.Estimate(distanceKm, durationMin)
		}
	}
	return Quote{Fare: fare, DistanceKm: distanceKm, DurationMin: durationMin}
}

package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// RouteService wraps the Google Maps Directions API. It satisfies the pricing
// duration provider so quotes can use live figures instead of the assumed
// average speed.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// TravelDuration returns the driving duration between two coordinates,
// summed over all legs of the best route.
func (s *RouteService) TravelDuration(ctx context.Context, origin, destination types.Point) (time.Duration, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}

	var total time.Duration
	for _, leg := range routes[0].Legs {
		total += leg.Duration
	}
	return total, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

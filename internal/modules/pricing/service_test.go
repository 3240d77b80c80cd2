package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

func TestService_Estimate(t *testing.T) {
	tests := []struct {
		name        string
		distanceKm  float64
		durationMin float64
		wantCents   int64
	}{
		{
			name:       "base fare only",
			distanceKm: 0, durationMin: 0,
			wantCents: 250,
		},
		{
			name:       "distance and duration",
			distanceKm: 10, durationMin: 20,
			// 2.50 + 1.50*10 + 0.25*20 = 22.50
			wantCents: 2250,
		},
		{
			name:       "short hop",
			distanceKm: 1.5, durationMin: 3,
			// 2.50 + 2.25 + 0.75 = 5.50
			wantCents: 550,
		},
		{
			name:       "fractional cents round half up",
			distanceKm: 1.111, durationMin: 0,
			// 2.50 + 1.6665 = 4.1665 -> 4.17
			wantCents: 417,
		},
	}

	s := NewService(DefaultRate, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Estimate(tt.distanceKm, tt.durationMin)
			if got.Amount != tt.wantCents {
				t.Errorf("Estimate() = %d cents, want %d", got.Amount, tt.wantCents)
			}
			if got.Currency != "USD" {
				t.Errorf("Estimate() currency = %s, want USD", got.Currency)
			}
		})
	}
}

func TestService_EstimateFromDistance(t *testing.T) {
	s := NewService(DefaultRate, nil)

	// 10km at 30 km/h -> 20 minutes; 2.50 + 15.00 + 5.00 = 22.50.
	fare, durationMin := s.EstimateFromDistance(10)
	if durationMin != 20 {
		t.Errorf("derived duration = %f, want 20", durationMin)
	}
	if fare.Amount != 2250 {
		t.Errorf("fare = %d cents, want 2250", fare.Amount)
	}

	// 5km -> 10 minutes; 2.50 + 7.50 + 2.50 = 12.50.
	fare, durationMin = s.EstimateFromDistance(5)
	if durationMin != 10 {
		t.Errorf("derived duration = %f, want 10", durationMin)
	}
	if fare.Amount != 1250 {
		t.Errorf("fare = %d cents, want 1250", fare.Amount)
	}
}

func TestService_EstimateIsDeterministic(t *testing.T) {
	s := NewService(DefaultRate, nil)
	first := s.Estimate(7.3, 14.6)
	for i := 0; i < 10; i++ {
		if got := s.Estimate(7.3, 14.6); got != first {
			t.Fatalf("Estimate not deterministic: %v vs %v", got, first)
		}
	}
}

type stubDurations struct {
	d   time.Duration
	err error
}

func (s *stubDurations) TravelDuration(_ context.Context, _, _ types.Point) (time.Duration, error) {
	return s.d, s.err
}

func TestService_QuoteRoute_UsesProviderDuration(t *testing.T) {
	s := NewService(DefaultRate, &stubDurations{d: 40 * time.Minute})
	p := types.Point{Lat: 25.033, Lng: 121.565}

	// Identical points: zero distance, so the fare isolates the duration term.
	// 2.50 + 0 + 0.25*40 = 12.50.
	q := s.QuoteRoute(context.Background(), p, p)
	if q.DurationMin != 40 {
		t.Errorf("duration = %f, want 40", q.DurationMin)
	}
	if q.Fare.Amount != 1250 {
		t.Errorf("fare = %d cents, want 1250", q.Fare.Amount)
	}
}

func TestService_QuoteRoute_FallsBackWithoutProvider(t *testing.T) {
	p := types.Point{Lat: 25.033, Lng: 121.565}

	for _, s := range []*Service{
		NewService(DefaultRate, nil),
		NewService(DefaultRate, &stubDurations{err: errors.New("api down")}),
	} {
		q := s.QuoteRoute(context.Background(), p, p)
		if q.DistanceKm != 0 {
			t.Errorf("distance = %f, want 0", q.DistanceKm)
		}
		if q.DurationMin != 0 {
			t.Errorf("duration = %f, want 0", q.DurationMin)
		}
		if q.Fare.Amount != 250 {
			t.Errorf("fare = %d cents, want base 250", q.Fare.Amount)
		}
	}
}

package matching

import (
	"context"
	"sort"
	"sync"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/geo"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// MemoryIndex is a linear-scan stand-in for RedisIndex.
type MemoryIndex struct {
	mu      sync.Mutex
	origins map[types.ID]types.Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{origins: make(map[types.ID]types.Point)}
}

func (s *MemoryIndex) AddTrip(_ context.Context, tripID types.ID, origin types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origins[tripID] = origin
	return nil
}

func (s *MemoryIndex) RemoveTrip(_ context.Context, tripID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.origins, tripID)
	return nil
}

func (s *MemoryIndex) NearbyTripIDs(_ context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type hit struct {
		id   types.ID
		dist float64
	}
	hits := make([]hit, 0, len(s.origins))
	for id, origin := range s.origins {
		d := geo.DistanceKm(p, origin)
		if d <= radiusKm {
			hits = append(hits, hit{id: id, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].id < hits[j].id
	})
	ids := make([]types.ID, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

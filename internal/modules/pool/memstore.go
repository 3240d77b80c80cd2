package pool

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type MemStore struct {
	mu       sync.Mutex
	requests map[types.ID]*PoolRequest
}

func NewMemStore() *MemStore {
	return &MemStore{requests: make(map[types.ID]*PoolRequest)}
}

func (s *MemStore) Create(_ context.Context, p *PoolRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[p.ID] = clonePoolRequest(p)
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*PoolRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePoolRequest(p), nil
}

func (s *MemStore) ListByRequester(_ context.Context, requesterID types.ID) ([]*PoolRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PoolRequest
	for _, p := range s.requests {
		if p.RequesterID == requesterID {
			out = append(out, clonePoolRequest(p))
		}
	}
	sortPoolRequests(out)
	return out, nil
}

func (s *MemStore) ListByTrip(_ context.Context, tripID types.ID, statuses []Status) ([]*PoolRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PoolRequest
	for _, p := range s.requests {
		if p.TripID != tripID {
			continue
		}
		if len(statuses) == 0 || statusIn(p.Status, statuses) {
			out = append(out, clonePoolRequest(p))
		}
	}
	sortPoolRequests(out)
	return out, nil
}

func (s *MemStore) ListAwaitingPrimary(_ context.Context, riderID types.ID) ([]*PoolRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PoolRequest
	for _, p := range s.requests {
		if p.AwaitsPrimaryRider() && *p.PrimaryRiderID == riderID {
			out = append(out, clonePoolRequest(p))
		}
	}
	sortPoolRequests(out)
	return out, nil
}

func (s *MemStore) ListAwaitingDriver(_ context.Context, driverID types.ID) ([]*PoolRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PoolRequest
	for _, p := range s.requests {
		if p.DriverID == driverID && p.AwaitsDriver() {
			out = append(out, clonePoolRequest(p))
		}
	}
	sortPoolRequests(out)
	return out, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from || p.StatusVersion != version {
		return false, nil
	}
	p.Status = to
	p.StatusVersion++
	if reason != "" {
		p.RejectionReason = reason
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func clonePoolRequest(p *PoolRequest) *PoolRequest {
	cp := *p
	if p.PrimaryRiderID != nil {
		id := *p.PrimaryRiderID
		cp.PrimaryRiderID = &id
	}
	return &cp
}

// sortPoolRequests orders newest first, ties by id.
func sortPoolRequests(reqs []*PoolRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
}

func statusIn(s Status, list []Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

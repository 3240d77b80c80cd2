package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type MemStore struct {
	mu       sync.Mutex
	requests map[types.ID]*Request
}

func NewMemStore() *MemStore {
	return &MemStore{requests: make(map[types.ID]*Request)}
}

func (s *MemStore) Create(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *MemStore) ListByRider(_ context.Context, riderID types.ID) ([]*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, r := range s.requests {
		if r.RiderID == riderID {
			out = append(out, cloneRequest(r))
		}
	}
	sortRequests(out)
	return out, nil
}

func (s *MemStore) ListByMatchedTrip(_ context.Context, tripID types.ID, statuses []Status) ([]*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, r := range s.requests {
		if r.MatchedTripID == nil || *r.MatchedTripID != tripID {
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, cloneRequest(r))
				break
			}
		}
	}
	sortRequests(out)
	return out, nil
}

func (s *MemStore) HasOpenByRider(_ context.Context, riderID types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.RiderID == riderID && r.Status != StatusCompleted && r.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, set StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	if set.MatchedTripID != nil {
		id := *set.MatchedTripID
		r.MatchedTripID = &id
	}
	if set.Price != nil {
		p := *set.Price
		r.Price = &p
	}
	stampRequestStatus(r, to)
	return true, nil
}

func (s *MemStore) SetCandidates(_ context.Context, id types.ID, from, to Status, version int, candidates []CandidateRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	r.Candidates = make([]CandidateRef, len(candidates))
	copy(r.Candidates, candidates)
	return true, nil
}

func stampRequestStatus(r *Request, to Status) {
	now := new(time.Time)
	*now = time.Now()
	switch to {
	case StatusMatched:
		r.MatchedAt = now
	case StatusCompleted:
		r.CompletedAt = now
	case StatusCancelled:
		r.CancelledAt = now
	}
}

func cloneRequest(r *Request) *Request {
	cp := *r
	if r.MatchedTripID != nil {
		id := *r.MatchedTripID
		cp.MatchedTripID = &id
	}
	if r.Price != nil {
		p := *r.Price
		cp.Price = &p
	}
	cp.Candidates = make([]CandidateRef, len(r.Candidates))
	copy(cp.Candidates, r.Candidates)
	return &cp
}

func sortRequests(reqs []*Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

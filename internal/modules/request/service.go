// README: Request lifecycle service; single-document transitions only.
// Cross-module sequences (seat reservation, cascades) run in the dispatch
// coordinator, which calls the Mark* primitives here.
package request

import (
	"context"
	"errors"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

var (
	ErrNotFound        = errors.New("request not found")
	ErrInvalidState    = errors.New("operation not allowed in current request state")
	ErrAlreadyResolved = errors.New("request already resolved")
	ErrActiveRequest   = errors.New("rider has an open request")
	ErrUnauthorized    = errors.New("actor does not own this request")
	ErrConflict        = errors.New("request state conflict")
	ErrBadRequest      = errors.New("bad request")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	RiderID types.ID
	Pickup  types.Point
	Dropoff types.Point
	Seats   int
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if cmd.RiderID == "" || cmd.Seats < 1 {
		return nil, ErrBadRequest
	}
	if err := cmd.Pickup.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	if err := cmd.Dropoff.Validate(); err != nil {
		return nil, ErrBadRequest
	}
	open, err := s.store.HasOpenByRider(ctx, cmd.RiderID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrActiveRequest
	}

	r := &Request{
		ID:            types.NewID(),
		RiderID:       cmd.RiderID,
		Pickup:        cmd.Pickup,
		Dropoff:       cmd.Dropoff,
		Seats:         cmd.Seats,
		Status:        StatusPending,
		StatusVersion: 0,
		CreatedAt:     time.Now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	return s.store.Get(ctx, id)
}

// GetOwned returns the request iff it belongs to the rider.
func (s *Service) GetOwned(ctx context.Context, id, riderID types.ID) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.RiderID != riderID {
		return nil, ErrUnauthorized
	}
	return r, nil
}

func (s *Service) ListByRider(ctx context.Context, riderID types.ID) ([]*Request, error) {
	if riderID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByRider(ctx, riderID)
}

// AttachMatches stores the ranked candidate snapshot, truncated to
// TopCandidates. With at least one candidate the request moves to matching;
// with none it stays pending.
func (s *Service) AttachMatches(ctx context.Context, id types.ID, candidates []CandidateRef) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending && r.Status != StatusMatching {
		return nil, ErrInvalidState
	}
	if len(candidates) > TopCandidates {
		candidates = candidates[:TopCandidates]
	}
	to := r.Status
	if len(candidates) > 0 {
		to = StatusMatching
	}
	ok, err := s.store.SetCandidates(ctx, id, r.Status, to, r.StatusVersion, candidates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, id)
}

// MarkMatched binds the request to a trip with its price. The caller has
// already reserved the seats; a false CAS here means the request moved
// concurrently and the reservation must be compensated.
func (s *Service) MarkMatched(ctx context.Context, id, riderID, tripID types.ID, price types.Money) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.RiderID != riderID {
		return ErrUnauthorized
	}
	if r.Status != StatusPending && r.Status != StatusMatching {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, id, r.Status, StatusMatched, r.StatusVersion, StatusUpdate{
		MatchedTripID: &tripID,
		Price:         &price,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// MarkCancelled moves the request to cancelled. Terminal requests fail with
// ErrAlreadyResolved. Seat release for matched requests is the caller's job
// and must happen before this call.
func (s *Service) MarkCancelled(ctx context.Context, id, riderID types.ID) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if riderID != "" && r.RiderID != riderID {
		return ErrUnauthorized
	}
	if r.Status == StatusCompleted || r.Status == StatusCancelled {
		return ErrAlreadyResolved
	}
	ok, err := s.store.UpdateStatus(ctx, id, r.Status, StatusCancelled, r.StatusVersion, StatusUpdate{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// ListByMatchedTrip returns the requests bound to the trip in the given
// statuses.
func (s *Service) ListByMatchedTrip(ctx context.Context, tripID types.ID, statuses []Status) ([]*Request, error) {
	return s.store.ListByMatchedTrip(ctx, tripID, statuses)
}

// CancelForTrip cancels every request still riding on the trip, for driver
// trip cancellation. Returns the requests that were cancelled so callers
// can notify their riders.
func (s *Service) CancelForTrip(ctx context.Context, tripID types.ID) ([]*Request, error) {
	reqs, err := s.store.ListByMatchedTrip(ctx, tripID, []Status{StatusMatched, StatusInProgress})
	if err != nil {
		return nil, err
	}
	cancelled := make([]*Request, 0, len(reqs))
	for _, r := range reqs {
		ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, StatusUpdate{})
		if err != nil {
			return cancelled, err
		}
		if !ok {
			// The request moved concurrently (rider cancel); skip it.
			continue
		}
		cancelled = append(cancelled, r)
	}
	return cancelled, nil
}

// AdvanceWithTrip moves every request matched to the trip in lockstep with
// the trip's own transition: matched → in_progress, in_progress → completed.
func (s *Service) AdvanceWithTrip(ctx context.Context, tripID types.ID, to Status) error {
	if to != StatusInProgress && to != StatusCompleted {
		return ErrBadRequest
	}
	from := StatusMatched
	if to == StatusCompleted {
		from = StatusInProgress
	}
	reqs, err := s.store.ListByMatchedTrip(ctx, tripID, []Status{from})
	if err != nil {
		return err
	}
	for _, r := range reqs {
		ok, err := s.store.UpdateStatus(ctx, r.ID, from, to, r.StatusVersion, StatusUpdate{})
		if err != nil {
			return err
		}
		if !ok {
			// The request moved concurrently (rider cancel); skip it.
			continue
		}
	}
	return nil
}

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type Recorded struct {
	RecipientID types.ID
	Kind        string
	Payload     Payload
}

// MemorySink records everything it is handed.
type MemorySink struct {
	mu            sync.Mutex
	notifications []Recorded
	events        []TripEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Notify(_ context.Context, recipientID types.ID, kind string, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, Recorded{
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     payload,
	})
}

func (s *MemorySink) TripEvent(_ context.Context, ev TripEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	s.events = append(s.events, ev)
}

// Notifications returns a copy of everything recorded so far.
func (s *MemorySink) Notifications() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Recorded, len(s.notifications))
	copy(cp, s.notifications)
	return cp
}

// ForRecipient returns the recorded notifications addressed to one user.
func (s *MemorySink) ForRecipient(id types.ID) []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recorded
	for _, n := range s.notifications {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

// Events returns a copy of the emitted trip events.
func (s *MemorySink) Events() []TripEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]TripEvent, len(s.events))
	copy(cp, s.events)
	return cp
}

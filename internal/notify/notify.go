// README: Notification sink: user-directed messages and trip event emission.
package notify

import (
	"context"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// Notification kinds, kept as the mobile clients already consume them.
const (
	KindPoolRequest       = "pool_request"
	KindPoolRequestUpdate = "pool_request_update"
	KindPoolUpdate        = "pool_update"
	KindRequestUpdate     = "request_update"
)

// Payload carries the human-readable text and entity references of a
// notification. Empty fields are omitted on the wire.
type Payload struct {
	Title         string   `json:"title,omitempty"`
	Message       string   `json:"message,omitempty"`
	TripID        types.ID `json:"trip_id,omitempty"`
	PoolRequestID types.ID `json:"pool_request_id,omitempty"`
	RequestID     types.ID `json:"request_id,omitempty"`
}

// TripEvent is the record emitted on trip transitions and completed
// assignments for downstream consumers (points, payments).
type TripEvent struct {
	TripID      types.ID  `json:"trip_id"`
	Status      string    `json:"status,omitempty"`
	PassengerID types.ID  `json:"passenger_id,omitempty"`
	Seats       int       `json:"seats,omitempty"`
	IsShared    bool      `json:"is_shared,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Sink delivers notifications and trip events. Delivery is fire-and-forget:
// implementations absorb transport failures so domain flows never stall on a
// broker outage.
type Sink interface {
	Notify(ctx context.Context, recipientID types.ID, kind string, payload Payload)
	TripEvent(ctx context.Context, ev TripEvent)
}

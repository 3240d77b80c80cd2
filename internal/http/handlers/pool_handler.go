// README: Pool negotiation handlers (join bids, rider/driver verdicts, listings).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/http/middleware"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pool"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

const (
	actionAccept = "accept"
	actionReject = "reject"
)

type PoolHandler struct {
	co    *dispatch.Coordinator
	pools *pool.Service
}

func NewPoolHandler(co *dispatch.Coordinator, pools *pool.Service) *PoolHandler {
	return &PoolHandler{co: co, pools: pools}
}

type createPoolReq struct {
	PickupLat  float64 `json:"pickup_lat"`
	PickupLng  float64 `json:"pickup_lng"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLng float64 `json:"dropoff_lng"`
	Seats      int     `json:"seats"`
}

type poolResponse struct {
	ID              types.ID    `json:"pool_request_id"`
	TripID          types.ID    `json:"trip_id"`
	RequesterID     types.ID    `json:"requester_id"`
	PrimaryRiderID  *types.ID   `json:"primary_rider_id,omitempty"`
	DriverID        types.ID    `json:"driver_id"`
	Pickup          types.Point `json:"pickup"`
	Dropoff         types.Point `json:"dropoff"`
	Seats           int         `json:"seats"`
	Status          pool.Status `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

func toPoolResponse(p *pool.PoolRequest) poolResponse {
	return poolResponse{
		ID:              p.ID,
		TripID:          p.TripID,
		RequesterID:     p.RequesterID,
		PrimaryRiderID:  p.PrimaryRiderID,
		DriverID:        p.DriverID,
		Pickup:          p.Pickup,
		Dropoff:         p.Dropoff,
		Seats:           p.Seats,
		Status:          p.Status,
		RejectionReason: p.RejectionReason,
		CreatedAt:       p.CreatedAt,
	}
}

// Create opens a pooling bid against a shareable trip.
func (h *PoolHandler) Create(c *gin.Context) {
	var req createPoolReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.pools.Create(c.Request.Context(), pool.CreateCommand{
		TripID:      types.ID(c.Param("id")),
		RequesterID: types.ID(middleware.CallerUID(c)),
		Pickup:      types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:     types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Seats:       req.Seats,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toPoolResponse(p))
}

// ListForTrip returns a trip's pool requests to its driver, optionally
// filtered by repeated status query params.
func (h *PoolHandler) ListForTrip(c *gin.Context) {
	var statuses []pool.Status
	for _, s := range c.QueryArray("status") {
		statuses = append(statuses, pool.Status(s))
	}
	list, err := h.pools.ListForTrip(c.Request.Context(),
		types.ID(c.Param("id")),
		types.ID(middleware.CallerUID(c)),
		statuses,
	)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := make([]poolResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, toPoolResponse(p))
	}
	writeJSON(c, http.StatusOK, gin.H{"pool_requests": resp})
}

// PendingCount reports how many pool requests on the trip still wait on the
// caller's decision.
func (h *PoolHandler) PendingCount(c *gin.Context) {
	n, err := h.pools.PendingCount(c.Request.Context(),
		types.ID(c.Param("id")),
		types.ID(middleware.CallerUID(c)),
	)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pending_count": n, "has_pending": n > 0})
}

type poolActionReq struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// PrimaryRiderAction records the primary rider's verdict on a join bid.
func (h *PoolHandler) PrimaryRiderAction(c *gin.Context) {
	var req poolActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	riderID := types.ID(middleware.CallerUID(c))

	var err error
	switch req.Action {
	case actionAccept:
		err = h.pools.PrimaryRiderAccept(c.Request.Context(), id, riderID)
	case actionReject:
		err = h.pools.PrimaryRiderReject(c.Request.Context(), id, riderID)
	default:
		writeError(c, http.StatusBadRequest, "action must be accept or reject")
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	h.respondWith(c, id, riderID)
}

// DriverAction records the driver's verdict. Acceptance books the seats, so
// it runs through the coordinator's per-trip lock.
func (h *PoolHandler) DriverAction(c *gin.Context) {
	var req poolActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	driverID := types.ID(middleware.CallerUID(c))

	var err error
	switch req.Action {
	case actionAccept:
		err = h.co.DriverAcceptPool(c.Request.Context(), id, driverID)
	case actionReject:
		err = h.pools.DriverReject(c.Request.Context(), id, driverID, req.Reason)
	default:
		writeError(c, http.StatusBadRequest, "action must be accept or reject")
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	h.respondWith(c, id, driverID)
}

// ListMine returns the caller's pool requests: role=outgoing (default) for
// bids they opened, role=incoming for bids waiting on their decision.
func (h *PoolHandler) ListMine(c *gin.Context) {
	actorID := types.ID(middleware.CallerUID(c))

	var (
		list []*pool.PoolRequest
		err  error
	)
	switch role := c.DefaultQuery("role", "outgoing"); role {
	case "outgoing":
		list, err = h.pools.ListByRequester(c.Request.Context(), actorID)
	case "incoming":
		list, err = h.pools.ListIncoming(c.Request.Context(), actorID)
	default:
		writeError(c, http.StatusBadRequest, "role must be outgoing or incoming")
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := make([]poolResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, toPoolResponse(p))
	}
	writeJSON(c, http.StatusOK, gin.H{"pool_requests": resp})
}

func (h *PoolHandler) respondWith(c *gin.Context, id, actorID types.ID) {
	p, err := h.pools.Get(c.Request.Context(), id, actorID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toPoolResponse(p))
}

// README: Ride request handlers for create/get/accept-match/cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/http/middleware"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/request"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type RequestHandler struct {
	co       *dispatch.Coordinator
	requests *request.Service
}

func NewRequestHandler(co *dispatch.Coordinator, requests *request.Service) *RequestHandler {
	return &RequestHandler{co: co, requests: requests}
}

type createRequestReq struct {
	PickupLat  float64 `json:"pickup_lat"`
	PickupLng  float64 `json:"pickup_lng"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLng float64 `json:"dropoff_lng"`
	Seats      int     `json:"seats"`
}

type requestResponse struct {
	ID            types.ID               `json:"request_id"`
	RiderID       types.ID               `json:"rider_id"`
	Pickup        types.Point            `json:"pickup"`
	Dropoff       types.Point            `json:"dropoff"`
	Seats         int                    `json:"seats"`
	Status        request.Status         `json:"status"`
	MatchedTripID *types.ID              `json:"matched_trip_id,omitempty"`
	Price         *types.Money           `json:"price,omitempty"`
	Candidates    []request.CandidateRef `json:"candidates,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func toRequestResponse(r *request.Request) requestResponse {
	return requestResponse{
		ID:            r.ID,
		RiderID:       r.RiderID,
		Pickup:        r.Pickup,
		Dropoff:       r.Dropoff,
		Seats:         r.Seats,
		Status:        r.Status,
		MatchedTripID: r.MatchedTripID,
		Price:         r.Price,
		Candidates:    r.Candidates,
		CreatedAt:     r.CreatedAt,
	}
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.co.CreateRequest(c.Request.Context(), request.CreateCommand{
		RiderID: types.ID(middleware.CallerUID(c)),
		Pickup:  types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff: types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Seats:   req.Seats,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRequestResponse(r))
}

// Get returns a request to its rider or to the driver of its matched trip.
func (h *RequestHandler) Get(c *gin.Context) {
	r, err := h.co.GetRequest(c.Request.Context(), types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestResponse(r))
}

func (h *RequestHandler) ListMine(c *gin.Context) {
	list, err := h.requests.ListByRider(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := make([]requestResponse, 0, len(list))
	for _, r := range list {
		resp = append(resp, toRequestResponse(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": resp})
}

type acceptMatchReq struct {
	TripID string `json:"trip_id"`
}

func (h *RequestHandler) AcceptMatch(c *gin.Context) {
	var req acceptMatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TripID == "" {
		writeError(c, http.StatusBadRequest, "missing trip_id")
		return
	}
	r, err := h.co.AcceptMatch(c.Request.Context(),
		types.ID(c.Param("id")),
		types.ID(middleware.CallerUID(c)),
		types.ID(req.TripID),
	)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestResponse(r))
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	id := types.ID(c.Param("id"))
	err := h.co.CancelRequest(c.Request.Context(), id, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"request_id": id, "status": request.StatusCancelled})
}

// README: Trip handlers for create/search/lifecycle/passenger-status.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/http/middleware"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/matching"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type TripHandler struct {
	co    *dispatch.Coordinator
	trips *trip.Service
}

func NewTripHandler(co *dispatch.Coordinator, trips *trip.Service) *TripHandler {
	return &TripHandler{co: co, trips: trips}
}

type createTripReq struct {
	OriginLat      float64   `json:"origin_lat"`
	OriginLng      float64   `json:"origin_lng"`
	DestinationLat float64   `json:"destination_lat"`
	DestinationLng float64   `json:"destination_lng"`
	DepartureAt    time.Time `json:"departure_at"`
	Capacity       int       `json:"capacity"`
	Shareable      bool      `json:"shareable"`
}

type assignmentResponse struct {
	PassengerID types.ID              `json:"passenger_id"`
	Pickup      types.Point           `json:"pickup"`
	Dropoff     types.Point           `json:"dropoff"`
	Seats       int                   `json:"seats"`
	Status      trip.AssignmentStatus `json:"status"`
	IsShared    bool                  `json:"is_shared"`
}

type tripResponse struct {
	ID             types.ID             `json:"trip_id"`
	DriverID       types.ID             `json:"driver_id"`
	Origin         types.Point          `json:"origin"`
	Destination    types.Point          `json:"destination"`
	DepartureAt    time.Time            `json:"departure_at"`
	Capacity       int                  `json:"capacity"`
	AvailableSeats int                  `json:"available_seats"`
	Status         trip.Status          `json:"status"`
	Shareable      bool                 `json:"shareable"`
	Assignments    []assignmentResponse `json:"assignments,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func toTripResponse(t *trip.Trip) tripResponse {
	resp := tripResponse{
		ID:             t.ID,
		DriverID:       t.DriverID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		DepartureAt:    t.DepartureAt,
		Capacity:       t.Capacity,
		AvailableSeats: t.AvailableSeats,
		Status:         t.Status,
		Shareable:      t.Shareable,
		CreatedAt:      t.CreatedAt,
	}
	for _, a := range t.Assignments {
		resp.Assignments = append(resp.Assignments, assignmentResponse{
			PassengerID: a.PassengerID,
			Pickup:      a.Pickup,
			Dropoff:     a.Dropoff,
			Seats:       a.Seats,
			Status:      a.Status,
			IsShared:    a.IsShared,
		})
	}
	return resp
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.co.CreateTrip(c.Request.Context(), trip.CreateCommand{
		DriverID:    types.ID(middleware.CallerUID(c)),
		Origin:      types.Point{Lat: req.OriginLat, Lng: req.OriginLng},
		Destination: types.Point{Lat: req.DestinationLat, Lng: req.DestinationLng},
		DepartureAt: req.DepartureAt,
		Capacity:    req.Capacity,
		Shareable:   req.Shareable,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toTripResponse(t))
}

func (h *TripHandler) Get(c *gin.Context) {
	t, err := h.trips.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

// ListMine returns the caller's trips as a driver, newest first.
func (h *TripHandler) ListMine(c *gin.Context) {
	list, err := h.trips.ListByDriver(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := make([]tripResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, toTripResponse(t))
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": resp})
}

type searchTripsReq struct {
	PickupLat       float64    `json:"pickup_lat"`
	PickupLng       float64    `json:"pickup_lng"`
	DropoffLat      float64    `json:"dropoff_lat"`
	DropoffLng      float64    `json:"dropoff_lng"`
	RadiusKm        float64    `json:"radius_km"`
	DepartureAround *time.Time `json:"departure_around"`
	MinSeats        int        `json:"min_seats"`
}

func (h *TripHandler) Search(c *gin.Context) {
	var req searchTripsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	candidates, err := h.co.SearchTrips(c.Request.Context(), matching.Query{
		Pickup:          types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:         types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		RadiusKm:        req.RadiusKm,
		DepartureAround: req.DepartureAround,
		MinSeats:        req.MinSeats,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": candidates})
}

func (h *TripHandler) Start(c *gin.Context) {
	h.transition(c, trip.StatusInProgress, h.co.StartTrip)
}

func (h *TripHandler) Complete(c *gin.Context) {
	h.transition(c, trip.StatusCompleted, h.co.CompleteTrip)
}

func (h *TripHandler) Cancel(c *gin.Context) {
	h.transition(c, trip.StatusCancelled, h.co.CancelTrip)
}

func (h *TripHandler) transition(c *gin.Context, to trip.Status, op func(context.Context, types.ID, types.ID) error) {
	tripID := types.ID(c.Param("id"))
	err := op(c.Request.Context(), tripID, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trip_id": tripID, "status": to})
}

type shareabilityReq struct {
	Shareable bool `json:"shareable"`
}

// Shareability toggles pooling on a trip. The driver or any seated
// passenger may flip it.
func (h *TripHandler) Shareability(c *gin.Context) {
	var req shareabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	tripID := types.ID(c.Param("id"))
	err := h.co.ShareTrip(c.Request.Context(), trip.ShareCommand{
		TripID:    tripID,
		ActorID:   types.ID(middleware.CallerUID(c)),
		Shareable: req.Shareable,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trip_id": tripID, "shareable": req.Shareable})
}

type passengerStatusReq struct {
	PassengerID string `json:"passenger_id"`
	Status      string `json:"status"`
}

// PassengerStatus lets the driver report a passenger's progress:
// picked_up, dropped_off, or no_show.
func (h *TripHandler) PassengerStatus(c *gin.Context) {
	var req passengerStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PassengerID == "" {
		writeError(c, http.StatusBadRequest, "missing passenger_id")
		return
	}
	tripID := types.ID(c.Param("id"))
	driverID := types.ID(middleware.CallerUID(c))
	passengerID := types.ID(req.PassengerID)

	var err error
	switch trip.AssignmentStatus(req.Status) {
	case trip.AssignmentNoShow:
		err = h.co.NoShowPassenger(c.Request.Context(), trip.NoShowCommand{
			TripID:      tripID,
			DriverID:    driverID,
			PassengerID: passengerID,
		})
	case trip.AssignmentPickedUp, trip.AssignmentDroppedOff:
		err = h.co.ProgressPassenger(c.Request.Context(), trip.ProgressCommand{
			TripID:      tripID,
			DriverID:    driverID,
			PassengerID: passengerID,
			To:          trip.AssignmentStatus(req.Status),
		})
	default:
		writeError(c, http.StatusBadRequest, "invalid status")
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"trip_id":      tripID,
		"passenger_id": passengerID,
		"status":       req.Status,
	})
}

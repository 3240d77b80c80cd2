// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/matching"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pool"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/request"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module sentinel errors onto HTTP statuses. Pool
// errors may arrive wrapped, so matching goes through errors.Is.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrBadRequest),
		errors.Is(err, request.ErrBadRequest),
		errors.Is(err, pool.ErrBadRequest),
		errors.Is(err, matching.ErrBadRequest),
		errors.Is(err, types.ErrInvalidCoordinates):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrUnauthorized),
		errors.Is(err, request.ErrUnauthorized),
		errors.Is(err, pool.ErrUnauthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, trip.ErrNotFound),
		errors.Is(err, request.ErrNotFound),
		errors.Is(err, pool.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrInvalidState),
		errors.Is(err, trip.ErrInvalidTransition),
		errors.Is(err, trip.ErrInsufficientSeats),
		errors.Is(err, trip.ErrAlreadyResolved),
		errors.Is(err, trip.ErrConflict),
		errors.Is(err, request.ErrInvalidState),
		errors.Is(err, request.ErrAlreadyResolved),
		errors.Is(err, request.ErrActiveRequest),
		errors.Is(err, request.ErrConflict),
		errors.Is(err, pool.ErrNotShareable),
		errors.Is(err, pool.ErrInvalidTransition),
		errors.Is(err, pool.ErrAlreadyResolved),
		errors.Is(err, pool.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrBusy):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

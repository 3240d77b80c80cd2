// README: API gateway; registers HTTP routes and delegates to the dispatch coordinator.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/http/handlers"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/http/middleware"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/infra"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pool"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/request"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
)

type ServerDeps struct {
	Coordinator *dispatch.Coordinator
	Trips       *trip.Service
	Requests    *request.Service
	Pools       *pool.Service
	Verifier    infra.TokenVerifier
	Logger      *zap.Logger
}

type Server struct {
	co       *dispatch.Coordinator
	trips    *trip.Service
	requests *request.Service
	pools    *pool.Service
	verifier infra.TokenVerifier
	log      *zap.Logger
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		co:       deps.Coordinator,
		trips:    deps.Trips,
		requests: deps.Requests,
		pools:    deps.Pools,
		verifier: deps.Verifier,
		log:      log,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(s.log))
	r.Use(middleware.Logging(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tripHandler := handlers.NewTripHandler(s.co, s.trips)
	requestHandler := handlers.NewRequestHandler(s.co, s.requests)
	poolHandler := handlers.NewPoolHandler(s.co, s.pools)

	api := r.Group("/api", middleware.Auth(s.verifier))

	driverOnly := middleware.RequireRole("driver")

	trips := api.Group("/trips")
	{
		trips.POST("", driverOnly, tripHandler.Create)
		trips.GET("", driverOnly, tripHandler.ListMine)
		trips.POST("/search", tripHandler.Search)
		trips.GET("/:id", tripHandler.Get)
		trips.POST("/:id/start", driverOnly, tripHandler.Start)
		trips.POST("/:id/complete", driverOnly, tripHandler.Complete)
		trips.POST("/:id/cancel", driverOnly, tripHandler.Cancel)
		trips.POST("/:id/shareability", tripHandler.Shareability)
		trips.POST("/:id/passenger-status", driverOnly, tripHandler.PassengerStatus)
		trips.POST("/:id/pool-requests", poolHandler.Create)
		trips.GET("/:id/pool-requests", driverOnly, poolHandler.ListForTrip)
		trips.GET("/:id/pool-requests/pending", poolHandler.PendingCount)
	}

	requests := api.Group("/requests")
	{
		requests.POST("", requestHandler.Create)
		requests.GET("", requestHandler.ListMine)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("/:id/accept-match", requestHandler.AcceptMatch)
		requests.POST("/:id/cancel", requestHandler.Cancel)
	}

	pools := api.Group("/pool-requests")
	{
		pools.GET("", poolHandler.ListMine)
		pools.POST("/:id/primary-rider-action", poolHandler.PrimaryRiderAction)
		pools.POST("/:id/driver-action", driverOnly, poolHandler.DriverAction)
	}

	return r
}

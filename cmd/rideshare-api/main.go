// README: Entry point; loads config, wires services, starts the HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/config"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/dispatch"
	apihttp "github.com/shreyasss-12/Thank-You-Beyonc/internal/http"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/infra"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/maps"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/matching"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pool"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/pricing"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/request"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/modules/trip"
	"github.com/shreyasss-12/Thank-You-Beyonc/internal/notify"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := infra.NewLogger(cfg.Env)
	defer func() { _ = log.Sync() }()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.DB.MigrateOnStart {
		migrator, err := infra.NewMigrator(dbPool, "migrations")
		if err != nil {
			log.Fatal("init migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			log.Fatal("apply migrations", zap.Error(err))
		}
		_ = migrator.Close()
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	rabbit, err := infra.NewRabbitMQ(cfg.AMQP.URL, log)
	if err != nil {
		log.Fatal("connect rabbitmq", zap.Error(err))
	}
	defer rabbit.Close()
	if err := rabbit.DeclareTopicExchange(notify.Exchange); err != nil {
		log.Fatal("declare exchange", zap.Error(err))
	}
	sink := notify.NewAMQPSink(rabbit, log)

	var durations pricing.DurationProvider
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal("init maps client", zap.Error(err))
		}
		durations = routeSvc
	}

	trips := trip.NewService(trip.NewPGStore(dbPool))
	requests := request.NewService(request.NewPGStore(dbPool))
	pools := pool.NewService(pool.NewPGStore(dbPool), trips, trips, sink)
	prices := pricing.NewService(pricing.DefaultRate, durations)
	index := matching.NewRedisIndex(redisClient)
	matcher := matching.NewService(index, trips, prices, cfg.Matching.RadiusKm)

	co := dispatch.NewCoordinator(dispatch.Deps{
		Trips:    trips,
		Requests: requests,
		Pools:    pools,
		Matcher:  matcher,
		Pricing:  prices,
		Index:    index,
		Sink:     sink,
		Logger:   log,
		LockWait: cfg.Dispatch.LockWait,
	})

	handler := apihttp.NewServer(apihttp.ServerDeps{
		Coordinator: co,
		Trips:       trips,
		Requests:    requests,
		Pools:       pools,
		Verifier:    infra.NewJWTVerifier(cfg.Auth.JWTSecret),
		Logger:      log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
}

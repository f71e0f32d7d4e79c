// Command server wires the call administration service: stores, the
// lifecycle core, the HTTP surface, and the event pipeline. Business
// rules live in the internal packages; main only assembles them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	callhandler "convoca/internal/call/handler"
	callmetrics "convoca/internal/call/metrics"
	"convoca/internal/call/service"
	"convoca/internal/call/store"
	callstore "convoca/internal/call/store/call"
	phasestore "convoca/internal/call/store/phase"
	resolutionstore "convoca/internal/call/store/resolution"
	"convoca/internal/events"
	"convoca/internal/export"
	"convoca/internal/platform/config"
	"convoca/internal/platform/httpserver"
	"convoca/internal/platform/logger"
	platformmetrics "convoca/internal/platform/metrics"
	"convoca/internal/platform/middleware"
	"convoca/internal/platform/redis"
	"convoca/internal/summary"
	id "convoca/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when a DSN is configured, in-memory otherwise
	// (development and tests).
	var (
		calls       store.CallStore
		phases      store.PhaseStore
		resolutions store.ResolutionStore
		transactor  store.Transactor
	)
	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			log.Error("run migrations", "error", err)
			os.Exit(1)
		}
		calls = callstore.NewPostgres(db)
		phases = phasestore.NewPostgres(db)
		resolutions = resolutionstore.NewPostgres(db)
		transactor = store.NewTransactor(db)
		log.Info("using postgres stores")
	} else {
		calls = callstore.NewInMemory()
		phases = phasestore.NewInMemory()
		resolutions = resolutionstore.NewInMemory()
		transactor = store.NewMemoryTransactor()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var summaries *summary.Service
	if redisClient != nil {
		summaries = summary.New(calls, phases, resolutions, summary.NewRedisCache(redisClient), cfg.SummaryCacheTTL, log)
	} else {
		summaries = summary.New(calls, phases, resolutions, nil, cfg.SummaryCacheTTL, log)
	}

	// Event pipeline: domain services emit into an invalidator that drops
	// stale summaries, then into a bounded async inbox drained toward
	// Kafka when brokers are configured, or an in-process recorder.
	var sink events.Publisher
	kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	if kafka != nil {
		defer kafka.Close()
		sink = kafka
		log.Info("publishing lifecycle events to kafka", "topic", cfg.KafkaTopic)
	} else {
		sink = events.NewRecorder()
	}

	registry := events.NewRegistry()
	registry.Register(events.KindCall, func(ctx context.Context, entityID string) (any, error) {
		callID, err := id.ParseCallID(entityID)
		if err != nil {
			return nil, err
		}
		return calls.FindByID(ctx, callID, store.ScopeAll)
	})
	registry.Register(events.KindPhase, func(ctx context.Context, entityID string) (any, error) {
		phaseID, err := id.ParsePhaseID(entityID)
		if err != nil {
			return nil, err
		}
		return phases.FindByID(ctx, phaseID, store.ScopeAll)
	})
	registry.Register(events.KindResolution, func(ctx context.Context, entityID string) (any, error) {
		resolutionID, err := id.ParseResolutionID(entityID)
		if err != nil {
			return nil, err
		}
		return resolutions.FindByID(ctx, resolutionID, store.ScopeAll)
	})

	async := events.NewAsyncPublisher(cfg.EventBufferSize, log)
	publisher := summary.NewInvalidator(async, summaries, registry, log)

	svc := service.New(calls, phases, resolutions, transactor,
		service.WithLogger(log),
		service.WithPublisher(publisher),
		service.WithMetrics(callmetrics.New()),
	)

	validator := middleware.NewHMACValidator(cfg.JWTSigningKey)
	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Timeout(cfg.RequestTimeout),
		middleware.ContentTypeJSON,
		middleware.Latency(httpMetrics),
	)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor(validator, log))
		summary.NewHandler(summaries).Register(r)
		export.NewHandler(export.New(calls, phases, resolutions, log)).Register(r)
	})
	callhandler.New(svc, log, validator).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := async.Run(gctx, sink)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "grace", cfg.ShutdownTimeout.String())
		return httpserver.Shutdown(srv, cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("bye")
}

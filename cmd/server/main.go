package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zuclubit/certus/internal/audit"
	"github.com/zuclubit/certus/internal/catalog"
	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/platform/config"
	"github.com/zuclubit/certus/internal/platform/httpserver"
	"github.com/zuclubit/certus/internal/platform/logger"
	"github.com/zuclubit/certus/internal/platform/metrics"
	"github.com/zuclubit/certus/internal/platform/middleware"
	platformredis "github.com/zuclubit/certus/internal/platform/redis"
	rulesadmin "github.com/zuclubit/certus/internal/rules/admin"
	"github.com/zuclubit/certus/internal/rules/registry"
	submissionhandler "github.com/zuclubit/certus/internal/submission/handler"
	submissionservice "github.com/zuclubit/certus/internal/submission/service"
	submissionstore "github.com/zuclubit/certus/internal/submission/store"
)

// main wires the validation service: postgres-backed stores, the rule
// registry, the engine, and the HTTP surface. Business logic lives in the
// internal packages; this file only assembles them.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		log.Error("opening postgres", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connecting redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	ruleRegistry := registry.NewPostgres(db)
	subStore := submissionstore.NewPostgresStore(db)
	auditStore := audit.NewPostgresStore(db)
	auditor := audit.NewPublisher(auditStore, log)

	var lookup catalog.Lookup = catalog.NewPostgresLookup(db)
	if redisClient != nil {
		lookup = catalog.NewCached(lookup, redisClient.Client, cfg.Engine.SiblingCacheTTL)
	}

	var cacheClient *goredis.Client
	if redisClient != nil {
		cacheClient = redisClient.Client
	}
	recon := engine.NewReconciler(siblingSource{store: subStore}, cacheClient, cfg.Engine.SiblingCacheTTL)

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithReconciler(recon),
	}
	if cfg.Engine.ExternalLookupURL != "" {
		engineOpts = append(engineOpts,
			engine.WithExternalLookup(catalog.NewHTTP(cfg.Engine.ExternalLookupURL, cfg.Engine.LookupTimeout)))
	}
	eng := engine.New(ruleRegistry, lookup, cfg.Engine, engineOpts...)

	svc := submissionservice.New(subStore, eng, auditor,
		submissionservice.WithLogger(log),
		submissionservice.WithMetrics(m),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(log))
	submissionhandler.New(svc, log).Register(router)

	adminSvc := rulesadmin.New(ruleRegistry, auditor, rulesadmin.WithLogger(log))
	rulesadmin.NewHandler(adminSvc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(db, redisClient))

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting certus", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		worker, err := audit.NewWorker(auditStore, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Error("starting audit outbox worker", "error", err)
			os.Exit(1)
		}
		defer worker.Close()
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutting down", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

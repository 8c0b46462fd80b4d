package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"edueasy/internal/audit"
	"edueasy/internal/auth"
	"edueasy/internal/platform/config"
	"edueasy/internal/platform/httpserver"
	"edueasy/internal/platform/kafka"
	"edueasy/internal/platform/logger"
	"edueasy/internal/platform/metrics"
	"edueasy/internal/platform/postgres"
	"edueasy/internal/platform/redis"
	"edueasy/internal/ratelimit"
	"edueasy/internal/tracking/service"
	"edueasy/internal/tracking/store"
	httptransport "edueasy/internal/transport/http"
	"edueasy/internal/verification"
)

// main wires dependencies and owns the process lifecycle. Postgres, Redis,
// and Kafka are all optional: unset URLs select in-memory implementations so
// a bare `go run` serves a working single-node instance.
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("failed to run migrations", "error", err)
			return err
		}
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		return err
	}

	// Stores.
	var (
		counter     store.CounterStore
		assignments store.AssignmentStore
		auditStore  audit.Store
		records     verification.RecordStore
		limitStore  ratelimit.Store
		txRun       service.TxRunner
	)
	if db != nil {
		counter = store.NewPostgresCounter(db)
		assignments = store.NewPostgresAssignments(db)
		auditStore = audit.NewPostgresStore(db)
		records = verification.NewPostgresStore(db)
		txRun = postgres.TxRunner(db)
	} else {
		counter = store.NewInMemoryCounter(0)
		assignments = store.NewInMemoryAssignments()
		auditStore = audit.NewInMemoryStore()
		records = verification.NewInMemoryStore()
	}
	if redisClient != nil {
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
	} else {
		limitStore = ratelimit.NewInMemoryStore()
	}

	// Audit trail, optionally mirrored to Kafka.
	auditOpts := []audit.Option{audit.WithLogger(log)}
	if producer != nil {
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 3); err != nil {
			log.Error("failed to ensure audit topic", "error", err)
			return err
		}
		auditOpts = append(auditOpts, audit.WithMirror(producer, cfg.Kafka.AuditTopic))
	}
	auditor := audit.NewPublisher(auditStore, auditOpts...)

	// Services.
	allocatorOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
	}
	if txRun != nil {
		allocatorOpts = append(allocatorOpts, service.WithTxRunner(txRun))
	}
	allocator, err := service.New(counter, assignments, auditor, allocatorOpts...)
	if err != nil {
		log.Error("failed to build allocator", "error", err)
		return err
	}

	limiter, err := ratelimit.New(limitStore,
		int64(cfg.VerifyAttemptLimit), cfg.VerifyAttemptWindow,
		ratelimit.WithLogger(log))
	if err != nil {
		log.Error("failed to build rate limiter", "error", err)
		return err
	}

	verifier, err := verification.New(records, allocator,
		verification.WithLogger(log),
		verification.WithMetrics(m),
		verification.WithLimiter(limiter))
	if err != nil {
		log.Error("failed to build verification service", "error", err)
		return err
	}

	tokens := auth.NewTokenService(cfg.JWTSigningKey, "edueasy")

	handler, err := httptransport.NewHandler(verifier, allocator, auditor, tokens, log)
	if err != nil {
		log.Error("failed to build http handler", "error", err)
		return err
	}

	srv := httpserver.New(cfg.Addr, handler.Router())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting edueasy verification service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return err
	}
	return nil
}

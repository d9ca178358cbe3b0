package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	approvalHandler "veritax/internal/approval/handler"
	approvalService "veritax/internal/approval/service"
	approvalStorage "veritax/internal/approval/store"
	"veritax/internal/audit"
	auditHandler "veritax/internal/audit/handler"
	auditmem "veritax/internal/audit/store/memory"
	auditpg "veritax/internal/audit/store/postgres"
	clientHandler "veritax/internal/client/handler"
	clientMetrics "veritax/internal/client/metrics"
	clientService "veritax/internal/client/service"
	clientStorage "veritax/internal/client/store"
	memoHandler "veritax/internal/memo/handler"
	memoService "veritax/internal/memo/service"
	memoStorage "veritax/internal/memo/store"
	"veritax/internal/nexus/engine"
	nexusHandler "veritax/internal/nexus/handler"
	nexusMetrics "veritax/internal/nexus/metrics"
	nexusService "veritax/internal/nexus/service"
	nexusStorage "veritax/internal/nexus/store"
	piiHandler "veritax/internal/pii/handler"
	"veritax/internal/platform/config"
	"veritax/internal/platform/database"
	"veritax/internal/platform/httpserver"
	"veritax/internal/platform/logger"
	"veritax/internal/platform/middleware"
	platformredis "veritax/internal/platform/redis"
	"veritax/internal/platform/token"
	statuteHandler "veritax/internal/statute/handler"
	statuteMetrics "veritax/internal/statute/metrics"
	statuteService "veritax/internal/statute/service"
	statuteStorage "veritax/internal/statute/store"
	"veritax/pkg/platform/tx"
)

// main wires storage, services, and transport. Business logic lives in the
// internal service packages; this file only decides which implementations run.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		clientStore   clientService.Store
		stateStore    nexusService.StateStore
		alertStore    nexusService.AlertStore
		statuteStore  statuteService.Store
		memoStore     memoService.Store
		approvalStore approvalService.Store
		auditStore    audit.Store
	)
	var txRunner tx.Runner = tx.Noop{}

	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()

		if err := database.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err.Error())
			os.Exit(1)
		}

		clientStore = clientStorage.NewPostgres(db)
		stateStore = nexusStorage.NewStatePostgres(db)
		alertStore = nexusStorage.NewAlertPostgres(db)
		statuteStore = statuteStorage.NewPostgres(db)
		memoStore = memoStorage.NewPostgres(db)
		approvalStore = approvalStorage.NewPostgres(db)
		auditStore = auditpg.New(db)
		txRunner = tx.NewSQL(db)
		log.Info("storage: postgres")
	} else {
		clientStore = clientStorage.NewInMemory()
		stateStore = nexusStorage.NewStateInMemory()
		alertStore = nexusStorage.NewAlertInMemory()
		statuteStore = statuteStorage.NewInMemory()
		memoStore = memoStorage.NewInMemory()
		approvalStore = approvalStorage.NewInMemory()
		auditStore = auditmem.NewInMemoryStore()
		log.Info("storage: in-memory (no VERITAX_DATABASE_URL)")
	}

	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err.Error())
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		statuteStore = statuteStorage.NewRedisCache(statuteStore, rdb.Client)
		log.Info("statute cache: redis")
	}

	var publisherOpts []audit.PublisherOption
	auditInbox := make(chan audit.Event, 1024)
	var kafkaSink *audit.KafkaSink
	if cfg.KafkaSeeds != "" {
		kafkaSink, err = audit.NewKafkaSink(ctx, cfg.KafkaSeeds)
		if err != nil {
			log.Error("kafka unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer kafkaSink.Close()
		publisherOpts = append(publisherOpts, audit.WithSink(audit.NewChannelSink(auditInbox)))
		log.Info("audit stream: kafka", "topic", audit.Topic)
	}
	publisher := audit.NewPublisher(auditStore, publisherOpts...)

	statuteSvc := statuteService.New(statuteStore,
		statuteService.WithLogger(log),
		statuteService.WithAuditPublisher(publisher),
		statuteService.WithMetrics(statuteMetrics.New()),
		statuteService.WithTxRunner(txRunner),
	)
	nexusSvc := nexusService.New(stateStore, alertStore,
		nexusService.WithLogger(log),
		nexusService.WithAuditPublisher(publisher),
		nexusService.WithMetrics(nexusMetrics.New()),
		nexusService.WithThresholdResolver(statuteSvc),
		nexusService.WithEngineConfig(engine.Config{WarnRatio: cfg.WarnRatio}),
	)
	statuteSvc.SetClientStates(nexusSvc)

	clientSvc := clientService.New(clientStore, nexusSvc,
		clientService.WithLogger(log),
		clientService.WithAuditPublisher(publisher),
		clientService.WithMetrics(clientMetrics.New()),
	)
	memoSvc := memoService.New(memoStore,
		memoService.WithLogger(log),
		memoService.WithAuditPublisher(publisher),
	)
	approvalSvc := approvalService.New(approvalStore,
		approvalService.WithLogger(log),
		approvalService.WithAuditPublisher(publisher),
	)

	tokens := token.NewService(cfg.JWTSigningKey, "veritax")

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(middleware.TokenServiceValidator{Tokens: tokens}, log))

		clientHandler.New(clientSvc, log).Register(r)
		nexusHandler.New(nexusSvc, log).Register(r)
		statuteHandler.New(statuteSvc, log).Register(r)
		memoHandler.New(memoSvc, log).Register(r)
		approvalHandler.New(approvalSvc, log).Register(r)
		auditHandler.New(publisher, log).Register(r)
		piiHandler.New(log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("veritax listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if kafkaSink != nil {
		g.Go(func() error {
			err := audit.NewWorker(kafkaSink, auditInbox).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

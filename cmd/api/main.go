package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bookinventory/internal/auth"
	"bookinventory/internal/book"
	"bookinventory/internal/config"
	"bookinventory/internal/httpx"
	"bookinventory/internal/notify"
	"bookinventory/internal/platform/logging"
	"bookinventory/internal/platform/observability"
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		// the logger level is part of the config, so fall back to a default one
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("cannot build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint, config.ServiceName, config.ServiceVersion)
	if err != nil {
		logger.Fatal("cannot set up tracing", zap.Error(err))
	}

	store, ready, closeStore := mustOpenStore(cfg, logger)
	defer closeStore()

	dispatcher := notify.NewDispatcher(logger, notify.NewLogListener(logger))
	var kafkaListener *notify.KafkaListener
	if len(cfg.KafkaBrokers) > 0 {
		kafkaListener = notify.NewKafkaListener(
			notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaWorkers, logger)
		dispatcher.Register(kafkaListener)
		logger.Info("forwarding book events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	creds, err := auth.LoadCredentials(cfg.AuthUsersFile, cfg.AuthUsers)
	if err != nil {
		logger.Fatal("cannot load credentials", zap.Error(err))
	}
	if creds.Len() == 0 {
		logger.Warn("no users configured; every protected route will answer 401")
	}

	limiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)

	handler := newRouter(serverDeps{
		cfg:     cfg,
		logger:  logger,
		books:   book.NewService(store, dispatcher, logger),
		authn:   auth.NewService(creds, cfg.JWTSecret, cfg.JWTTTL, logger),
		ready:   ready,
		limiter: limiter,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	limiter.Stop()
	if kafkaListener != nil {
		if err := kafkaListener.Close(); err != nil {
			logger.Error("kafka listener close", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func mustOpenStore(cfg config.Config, logger *zap.Logger) (book.Store, readinessCheck, func()) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return book.NewMemoryRepo(), nil, func() {}
	}

	pool := mustOpenDB(cfg.DBDSN, logger)
	return book.NewPostgresRepo(pool, cfg.DBTimeout), pool.Ping, pool.Close
}

func mustOpenDB(dsn string, logger *zap.Logger) *pgxpool.Pool {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal("cannot create db pool", zap.Error(err))
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		logger.Fatal("cannot ping database", zap.String("dsn", config.RedactDSN(dsn)), zap.Error(err))
	}
	logger.Info("database connection OK", zap.String("dsn", config.RedactDSN(dsn)))
	return pool
}

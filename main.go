package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aeriegateway/config"
	"aeriegateway/config/database"
	"aeriegateway/internal/view/repository"
	"aeriegateway/internal/view/service"
	"aeriegateway/middleware"
	"aeriegateway/pkg/logger"
	"aeriegateway/pkg/metrics"
	"aeriegateway/router"
	"aeriegateway/socket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Postgres.DSN())
	if err != nil {
		logger.Log.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Log.Info("Successfully connected to the database", zap.String("host", cfg.Postgres.Host))

	if err := database.CreateSchemas(ctx, db, cfg.Postgres.User); err != nil {
		logger.Log.Fatal("Failed to create schemas", zap.Error(err))
	}
	if err := database.InitUI(ctx, db); err != nil {
		logger.Log.Fatal("Failed to initialize view table", zap.Error(err))
	}

	hub := socket.NewHub()
	go hub.Run(ctx)

	views := service.NewViewService(repository.NewViewRepository(db), hub, cfg.Version)

	auth := &middleware.Authenticator{Secret: []byte(cfg.Auth.JWTSecret), UsernameClaim: cfg.Auth.UsernameClaim}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		auth.Revoked = middleware.NewRedisRevocationList(rdb, "")
		logger.Log.Info("Session revocation enabled", zap.String("redis", cfg.Redis.Addr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	handler := router.Setup(router.Dependencies{
		Views:      views,
		Hub:        hub,
		Auth:       auth,
		Limiter:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSOrigin: cfg.CORSAllowedOrigin,
		Version:    cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Aerie gateway listening", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"github.com/quantforge/matchcore/internal/config"
	"github.com/quantforge/matchcore/internal/feed"
	"github.com/quantforge/matchcore/internal/gateway"
	"github.com/quantforge/matchcore/internal/matching"
	"github.com/quantforge/matchcore/pkg/observability"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability)
	logger.Info(ctx, "starting matchcore gateway", map[string]interface{}{
		"symbols":        cfg.Engine.Symbols,
		"snapshot_depth": cfg.Engine.SnapshotDepth,
	})

	tracingProvider, err := observability.NewTracingProvider(cfg.Observability)
	if err != nil {
		logger.Error(ctx, "failed to start tracing provider", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "failed to shut down tracing provider", err)
		}
	}()

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Namespace:      "matchcore",
		Port:           cfg.Observability.MetricsPort,
		Enabled:        cfg.Observability.MetricsEnabled,
	})
	if err != nil {
		logger.Error(ctx, "failed to start metrics provider", err)
		os.Exit(1)
	}

	registry := matching.NewRegistry()
	for _, symbol := range cfg.Engine.Symbols {
		registry.Book(symbol)
	}

	var publisher *feed.Publisher
	if cfg.Feed.URL != "" {
		publisher, err = feed.NewPublisher(cfg.Feed, logger)
		if err != nil {
			logger.Error(ctx, "failed to start feed publisher", err)
			os.Exit(1)
		}
		defer publisher.Close()
	}

	perfMonitor := observability.NewPerformanceMonitor(logger)
	defer perfMonitor.Stop()

	svc := gateway.NewService(registry, publisher, metrics, logger, perfMonitor, gateway.ServiceConfig{
		SnapshotDepth: cfg.Engine.SnapshotDepth,
		MinOrderQty:   cfg.Engine.MinOrderQty,
	})
	handlers := gateway.NewHandlers(svc)

	middleware := observability.NewGatewayMiddleware(metrics, logger, observability.MiddlewareConfig{
		ServiceName: cfg.Observability.ServiceName,
	})

	rateLimiter := observability.NewRateLimiter(cfg.RateLimit)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.GinMiddleware(), rateLimiter.GinMiddleware())
	handlers.RegisterRoutes(router)

	commandServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler:      router,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		IdleTimeout:  cfg.Gateway.IdleTimeout,
	}

	healthChecker := observability.NewHealthChecker(logger)
	healthChecker.RegisterCheck("book", observability.BookHealthCheck(registry))
	if publisher != nil {
		healthChecker.RegisterCheck("feed", observability.RedisHealthCheck(publisher.Ping))
	}
	healthServer := observability.NewHealthServer(healthChecker, observability.ServiceInfo{
		Name:    cfg.Observability.ServiceName,
		Version: cfg.Observability.ServiceVersion,
	}, logger)

	adminRouter := mux.NewRouter()
	healthServer.RegisterRoutes(adminRouter)
	if cfg.Observability.MetricsEnabled {
		adminRouter.Handle("/metrics", promHandler(metrics)).Methods("GET")
	}
	adminRouter.Handle("/performance", perfMonitor.Handler()).Methods("GET")

	adminServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Gateway.Host, cfg.Gateway.AdminPort),
		Handler: adminRouter,
	}

	go func() {
		logger.Info(ctx, "command gateway listening", map[string]interface{}{"addr": commandServer.Addr})
		if err := commandServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "command gateway stopped unexpectedly", err)
		}
	}()

	go func() {
		logger.Info(ctx, "admin server listening", map[string]interface{}{"addr": adminServer.Addr})
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "admin server stopped unexpectedly", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := commandServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "failed to stop command gateway", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "failed to stop admin server", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "failed to stop metrics provider", err)
	}

	logger.Info(ctx, "shutdown complete", nil)
}

// promHandler exposes the Prometheus registry MetricsProvider.StartMetricsServer
// would otherwise serve on its own listener; the admin mux router serves it
// instead so health and metrics share one port.
func promHandler(metrics *observability.MetricsProvider) http.Handler {
	return metrics.PrometheusHandler()
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memo-backend/infrastructure/config"
	"memo-backend/infrastructure/di"
	"memo-backend/interfaces/http/rest"
	"memo-backend/pkg/observability"

	"go.uber.org/zap"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	if cfg.EnableTracing {
		shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: di.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
		})
		if err != nil {
			logger.Warn("Tracing disabled", zap.Error(err))
		} else {
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer flushCancel()
				if err := shutdownTracing(flushCtx); err != nil {
					logger.Warn("Failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	router := rest.NewRouter(
		container.MemoService,
		container.Stores.Health,
		container.Metrics,
		container.ErrorHandler,
		logger,
		rest.Options{EnableCORS: cfg.EnableCORS, AllowedOrigins: cfg.CORSAllowedOrigins},
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("backend", cfg.StoreBackend),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Clean up resources
	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}

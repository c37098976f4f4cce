// Package main implements the Lambda consumer for index reconciliation events.
// It re-reads the primary store and re-syncs the cache and search index.
package main

import (
	"context"
	"log"

	"memo-backend/infrastructure/config"
	"memo-backend/infrastructure/di"
	"memo-backend/interfaces/reconcile"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}
	defer cleanup()

	handler := reconcile.NewHandler(container.Repository, container.Logger)
	container.Logger.Info("Reconcile handler initialized")

	lambda.Start(handler.Handle)
}

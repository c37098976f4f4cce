//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"memo-backend/application/ports"
	"memo-backend/infrastructure/config"
	"memo-backend/infrastructure/persistence/repository"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	ProvideStores,
	ProvideReporter,
	ProvideRepositoryConfig,
	ProvideMemoRepository,
	wire.Bind(new(ports.MemoRepository), new(*repository.MemoRepository)),
	ProvideMemoService,
	ProvideErrorHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}

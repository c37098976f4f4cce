package di

import (
	"memo-backend/application/services"
	"memo-backend/infrastructure/config"
	"memo-backend/infrastructure/persistence/repository"
	pkgerrors "memo-backend/pkg/errors"
	"memo-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	Stores       *Stores
	Repository   *repository.MemoRepository
	MemoService  *services.MemoService
	ErrorHandler *pkgerrors.ErrorHandler
}

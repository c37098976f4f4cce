package rest

import (
	"context"
	"net/http"
	"sort"
	"time"

	"memo-backend/application/ports"
	"memo-backend/interfaces/http/rest/handlers"
	"memo-backend/interfaces/http/rest/middleware"
	"memo-backend/pkg/common"
	pkgerrors "memo-backend/pkg/errors"
	"memo-backend/pkg/observability"
	"memo-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 2 * time.Second

// Options toggles optional router behaviour
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
}

// Router creates and configures the HTTP router
type Router struct {
	memoService  handlers.MemoService
	checkers     map[string]ports.HealthChecker
	metrics      *observability.Metrics
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
	options      Options
}

// NewRouter creates a new router instance
func NewRouter(
	memoService handlers.MemoService,
	checkers map[string]ports.HealthChecker,
	metrics *observability.Metrics,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
	options Options,
) *Router {
	if len(options.AllowedOrigins) == 0 {
		options.AllowedOrigins = []string{"*"}
	}
	return &Router{
		memoService:  memoService,
		checkers:     checkers,
		metrics:      metrics,
		errorHandler: errorHandler,
		logger:       logger,
		options:      options,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	if rt.options.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.options.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.HeaderUserID},
			ExposedHeaders: []string{"X-Request-ID", common.HeaderDegradedWrite},
			MaxAge:         300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Principal(rt.errorHandler))

		memoHandler := handlers.NewMemoHandler(rt.memoService, rt.errorHandler, rt.logger)
		r.Route("/memos", memoHandler.Routes)
	})

	return router
}

// healthCheck reports liveness only
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": utils.NowRFC3339(),
	})
}

// readinessCheck pings every store concurrently
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(rt.checkers))
	for name := range rt.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	// A failed ping is a result, not an error; every store reports.
	results := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		checker := rt.checkers[name]
		g.Go(func() error {
			if err := checker.Ping(ctx); err != nil {
				results[i] = err.Error()
				return nil
			}
			results[i] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
		if results[i] != "ok" {
			status = http.StatusServiceUnavailable
			rt.logger.Warn("Readiness check failed", zap.String("store", name), zap.String("error", results[i]))
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	common.RespondJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

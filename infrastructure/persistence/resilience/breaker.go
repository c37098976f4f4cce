package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	pkgerrors "memo-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a breaker rejects a call without trying it
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds configuration for circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ReadyToTrip function determines when to trip the circuit breaker
	FailureThreshold float64
	MinRequests      uint32

	// OnStateChange is called after the logger on every transition
	OnStateChange func(name, from, to string)

	// IsFailure decides which errors count toward tripping; nil counts all
	IsFailure func(err error) bool
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if cfg.IsFailure == nil {
				return false
			}
			return !cfg.IsFailure(err)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})
}

func translate(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", name, ErrCircuitOpen)
	}
	return err
}

// Cache wraps a ports.Cache with a circuit breaker.
// Misses are successes; only errors count toward tripping.
type Cache struct {
	inner   ports.Cache
	breaker *gobreaker.CircuitBreaker
}

// NewCache wraps inner with a breaker built from cfg
func NewCache(inner ports.Cache, cfg BreakerConfig, logger *zap.Logger) *Cache {
	return &Cache{inner: inner, breaker: newBreaker(cfg, logger)}
}

var _ ports.Cache = (*Cache)(nil)

type cacheHit struct {
	value []byte
	ok    bool
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		value, ok, err := c.inner.Get(ctx, key)
		return cacheHit{value: value, ok: ok}, err
	})
	if err != nil {
		return nil, false, translate(c.breaker.Name(), err)
	}
	hit := res.(cacheHit)
	return hit.value, hit.ok, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Set(ctx, key, value, ttl)
	})
	return translate(c.breaker.Name(), err)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Delete(ctx, key)
	})
	return translate(c.breaker.Name(), err)
}

func (c *Cache) Invalidate(ctx context.Context, key string, version int, fenceTTL time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Invalidate(ctx, key, version, fenceTTL)
	})
	return translate(c.breaker.Name(), err)
}

func (c *Cache) SetIfNewer(ctx context.Context, key string, value []byte, version int, ttl time.Duration) (bool, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.SetIfNewer(ctx, key, value, version, ttl)
	})
	if err != nil {
		return false, translate(c.breaker.Name(), err)
	}
	return res.(bool), nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Exists(ctx, key)
	})
	if err != nil {
		return false, translate(c.breaker.Name(), err)
	}
	return res.(bool), nil
}

// Ping bypasses the breaker so readiness reflects the backend itself
func (c *Cache) Ping(ctx context.Context) error {
	if hc, ok := c.inner.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// State returns the breaker state name
func (c *Cache) State() string {
	return c.breaker.State().String()
}

// SearchIndex wraps a ports.SearchIndex with a circuit breaker.
// A rejected call surfaces as IndexUnavailable.
type SearchIndex struct {
	inner   ports.SearchIndex
	breaker *gobreaker.CircuitBreaker
}

// NewSearchIndex wraps inner with a breaker built from cfg. Unless cfg says
// otherwise only outages (see IndexOutage) trip it, so rejected queries
// cannot open the breaker for index writes.
func NewSearchIndex(inner ports.SearchIndex, cfg BreakerConfig, logger *zap.Logger) *SearchIndex {
	if cfg.IsFailure == nil {
		cfg.IsFailure = IndexOutage
	}
	return &SearchIndex{inner: inner, breaker: newBreaker(cfg, logger)}
}

// IndexOutage reports whether err means the index itself is unreachable
func IndexOutage(err error) bool {
	return pkgerrors.IsIndexUnavailable(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		!pkgerrors.IsAppError(err)
}

var _ ports.SearchIndex = (*SearchIndex)(nil)

func (s *SearchIndex) rejected(op string, err error) error {
	err = translate(s.breaker.Name(), err)
	if errors.Is(err, ErrCircuitOpen) {
		return pkgerrors.NewIndexUnavailableError(op, err)
	}
	return err
}

func (s *SearchIndex) Index(ctx context.Context, memo *entities.Memo) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.inner.Index(ctx, memo)
	})
	return s.rejected("index", err)
}

func (s *SearchIndex) Delete(ctx context.Context, id valueobjects.MemoID) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, id)
	})
	return s.rejected("delete", err)
}

func (s *SearchIndex) Search(ctx context.Context, query ports.SearchQuery) ([]*entities.Memo, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Search(ctx, query)
	})
	if err != nil {
		return nil, s.rejected("search", err)
	}
	return res.([]*entities.Memo), nil
}

// Ping bypasses the breaker so readiness reflects the backend itself
func (s *SearchIndex) Ping(ctx context.Context) error {
	if hc, ok := s.inner.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// State returns the breaker state name
func (s *SearchIndex) State() string {
	return s.breaker.State().String()
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/taskmaster/taskboard/internal/application/security"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// windowStore is a fixed-window limiter over the shared cache, so every
// instance behind a load balancer counts against the same window.
type windowStore struct {
	cache  ports.CacheRepository
	prefix string
	limit  int64
	window time.Duration
	logger *logger.Logger
}

var _ middleware.RateLimiterStore = (*windowStore)(nil)

// Allow fails open: a cache error lets the request through.
func (s *windowStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := s.cache.Increment(ctx, s.prefix+identifier, s.window)
	if err != nil {
		s.logger.Warnw("Rate limit store unavailable", "error", err)
		return true, nil
	}
	return n <= s.limit, nil
}

// limiterStore picks the cache-backed store when the cache is shared and
// echo's token bucket otherwise. The bucket refills one request per
// window/requests and holds at most requests.
func limiterStore(shared bool, cache ports.CacheRepository, name string, requests int, window time.Duration, log *logger.Logger) middleware.RateLimiterStore {
	if shared {
		return &windowStore{
			cache:  cache,
			prefix: "ratelimit:" + name + ":",
			limit:  int64(requests),
			window: window,
			logger: log,
		}
	}
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(window / time.Duration(requests)),
		Burst:     requests,
		ExpiresIn: window,
	})
}

// rateLimiter limits requests per client IP. A denied request answers 429
// and is recorded by the auditor.
func rateLimiter(store middleware.RateLimiterStore, message string, auditor *security.Auditor) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, ports.ErrorResponse{Message: "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			auditor.LogRateLimit(c.Request().Context(), c.Request().URL.Path)
			return c.JSON(http.StatusTooManyRequests, ports.ErrorResponse{Message: message})
		},
	})
}

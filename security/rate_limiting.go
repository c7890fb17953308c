package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/redis/go-redis/v9"

	"ticket-market/internal/apperr"
)

// RateLimiter counts attempts per key in fixed redis windows.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// Allow records one attempt for key and reports whether it is within the
// limit. The window starts at the first attempt.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.redis == nil {
		return true, nil
	}
	rkey := fmt.Sprintf("ratelimit:%s", key)

	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, rkey)
		pipe.ExpireNX(ctx, rkey, r.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(r.limit), nil
}

// Middleware limits requests per client IP on the routes it wraps.
func (r *RateLimiter) Middleware(scope string) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &redisStore{limiter: r, scope: scope},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errorBody("Unable to identify client"))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if err != nil {
				slog.Error("Rate limiter store failed", "error", err, "scope", scope)
			}
			return c.JSON(http.StatusTooManyRequests, errorBody(apperr.ErrRateLimited.Message))
		},
	})
}

// redisStore adapts RateLimiter to echo's RateLimiterStore.
type redisStore struct {
	limiter *RateLimiter
	scope   string
}

func (s *redisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := s.limiter.Allow(ctx, s.scope+":"+identifier)
	if err != nil {
		// fail open: redis trouble must not lock every client out
		slog.Warn("Rate limit check failed", "error", err, "scope", s.scope)
		return true, nil
	}
	return ok, nil
}

// AntiBotMiddleware rejects well known crawler user agents.
func AntiBotMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isSuspiciousUserAgent(c.Request().Header.Get("User-Agent")) {
				return c.JSON(http.StatusForbidden, errorBody("Access denied"))
			}
			return next(c)
		}
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	ua = strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}

func errorBody(msg string) map[string]any {
	return map[string]any{"errors": []map[string]string{{"message": msg}}}
}

package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/product_catalog/internal/logging"
)

const maxClientIDLength = 128

type Config struct {
	Name   string
	Limit  int
	Window time.Duration
}

func clientID(c echo.Context) string {
	id := c.RealIP()
	if len(id) > maxClientIDLength {
		id = id[:maxClientIDLength]
	}
	if id == "" {
		return "anonymous"
	}
	return id
}

// Middleware limits each client IP to cfg.Limit requests per cfg.Window. When
// the limiter itself fails the request is let through.
func Middleware(l Limiter, cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			log := logging.FromContext(ctx)
			client := clientID(c)

			res, err := l.Allow(ctx, cfg.Name+":"+client, cfg.Limit, cfg.Window)
			if err != nil {
				log.Error("rate_limit_check_failed", "limiter", cfg.Name, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				log.Warn("rate_limit_exceeded", "status", 429, "limiter", cfg.Name, "client_id", client)
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts, try again later")
			}
			return next(c)
		}
	}
}

// MemoryMiddleware is the single-process fallback used when Redis is not configured.
func MemoryMiddleware(cfg Config) echo.MiddlewareFunc {
	perSecond := rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds())
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      perSecond,
		Burst:     cfg.Limit,
		ExpiresIn: cfg.Window,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return clientID(c), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logging.FromContext(c.Request().Context()).Warn("rate_limit_exceeded",
				"status", 429, "limiter", cfg.Name, "client_id", identifier)
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts, try again later")
		},
	})
}

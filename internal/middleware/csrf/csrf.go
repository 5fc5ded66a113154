package csrf

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const ContextKey = "csrf"

type Config struct {
	CookieName string
	HeaderName string
	FormField  string

	CookiePath string
	Secure     bool
	MaxAge     time.Duration

	EnforceSameOrigin bool

	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName:        "XSRF-TOKEN",
		HeaderName:        "X-CSRF-Token",
		FormField:         "csrf_token",
		CookiePath:        "/",
		MaxAge:            24 * time.Hour,
		EnforceSameOrigin: true,
	}
}

// Middleware issues a double-submit token cookie and, on unsafe methods, requires
// the same token in the header or form field. The token is echoed in the response
// header so scripts can pick it up from any GET.
func Middleware(cfg Config) []echo.MiddlewareFunc {
	cfg = withDefaults(cfg)

	skipper := func(c echo.Context) bool {
		return slices.Contains(cfg.SkipPaths, c.Request().URL.Path)
	}

	token := middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        skipper,
		TokenLookup:    "header:" + cfg.HeaderName + ",form:" + cfg.FormField,
		ContextKey:     ContextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     cfg.CookiePath,
		CookieMaxAge:   int(cfg.MaxAge.Seconds()),
		CookieSecure:   cfg.Secure,
		CookieHTTPOnly: false,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token").SetInternal(err)
		},
	})

	expose := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if t, ok := c.Get(ContextKey).(string); ok && t != "" {
				c.Response().Header().Set(cfg.HeaderName, t)
			}
			return next(c)
		}
	}

	mws := []echo.MiddlewareFunc{token, expose}
	if cfg.EnforceSameOrigin {
		mws = append([]echo.MiddlewareFunc{SameOrigin(skipper)}, mws...)
	}
	return mws
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.FormField == "" {
		cfg.FormField = def.FormField
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}
	return cfg
}

// RequireToken guards a GET route that changes state. The token is read from the
// header or the form-field query parameter and must equal the cookie value.
func RequireToken(cfg Config) echo.MiddlewareFunc {
	cfg = withDefaults(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sent := c.Request().Header.Get(cfg.HeaderName)
			if sent == "" {
				sent = c.QueryParam(cfg.FormField)
			}
			cookie, err := c.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" || sent == "" ||
				subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}
			return next(c)
		}
	}
}

// SameOrigin rejects unsafe requests whose Origin (or Referer) names another
// host. Requests carrying neither header are let through to the token check.
func SameOrigin(skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if skipper != nil && skipper(c) {
				return next(c)
			}
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				return next(c)
			}
			if !sameOrigin(req) {
				return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
			}
			return next(c)
		}
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get(echo.HeaderOrigin)
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, schemeOf(r)) && strings.EqualFold(u.Host, r.Host)
}

func schemeOf(r *http.Request) string {
	if proto := r.Header.Get(echo.HeaderXForwardedProto); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

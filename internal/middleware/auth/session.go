package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/logging"
)

const (
	CookieName  = "session"
	ctxIdentity = "identity"
)

type Resolver interface {
	CurrentUser(ctx context.Context, token string) (domain.Identity, error)
}

type Session struct {
	Resolver Resolver
}

// TokenFrom reads the session token from the session cookie, then from an
// Authorization: Bearer header.
func TokenFrom(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Load resolves the caller once per request. It never rejects a request; a
// token that cannot be resolved leaves the caller anonymous.
func (s *Session) Load(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		identity := domain.Anonymous
		if token := TokenFrom(c); token != "" {
			id, err := s.Resolver.CurrentUser(ctx, token)
			if err != nil {
				logging.FromContext(ctx).Error("session_lookup_failed", "error", err)
			}
			identity = id
		}
		c.Set(ctxIdentity, identity)
		return next(c)
	}
}

func IdentityFrom(c echo.Context) domain.Identity {
	if id, ok := c.Get(ctxIdentity).(domain.Identity); ok {
		return id
	}
	return domain.Anonymous
}

// DeniedError turns an authorization failure into 401 for anonymous callers
// and 403 for everyone else.
func DeniedError(actor domain.Identity, err error) *echo.HTTPError {
	if actor.IsAnonymous() {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights").SetInternal(err)
}

func guard(action domain.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := IdentityFrom(c)
			if err := domain.Authorize(actor, action); err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					logging.FromContext(c.Request().Context()).Warn("access_denied",
						"user_id", actor.UserID, "action", action.String())
				}
				return DeniedError(actor, err)
			}
			return next(c)
		}
	}
}

func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return guard(domain.ActionViewFavorites)(next)
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return guard(domain.ActionManageProducts)(next)
}

func CreateCookie(name, value, path string, expTime time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

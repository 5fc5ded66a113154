package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/domain"
)

type fakeResolver map[string]domain.Identity

func (f fakeResolver) CurrentUser(_ context.Context, token string) (domain.Identity, error) {
	if token == "broken" {
		return domain.Anonymous, errors.New("db down")
	}
	return f[token], nil
}

var resolver = fakeResolver{
	"admin-token":    {UserID: 1, Email: "admin@x.com", Role: domain.RoleAdmin},
	"customer-token": {UserID: 2, Email: "alice@x.com", Role: domain.RoleCustomer},
}

func serve(t *testing.T, mw echo.MiddlewareFunc, setup func(*http.Request)) (*httptest.ResponseRecorder, domain.Identity) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	setup(req)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen domain.Identity
	h := func(c echo.Context) error {
		seen = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	}
	if mw != nil {
		h = mw(h)
	}
	s := &Session{Resolver: resolver}
	err := s.Load(h)(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, seen
}

func withCookie(token string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }
}

func TestLoadResolvesCookieAndBearer(t *testing.T) {
	rec, who := serve(t, nil, withCookie("customer-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(2), who.UserID)

	rec, who = serve(t, nil, func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-token") })
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, who.IsAdmin())

	rec, who = serve(t, nil, withCookie("broken"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, who.IsAnonymous())

	_, who = serve(t, nil, func(*http.Request) {})
	assert.True(t, who.IsAnonymous())
}

func TestRequireUser(t *testing.T) {
	rec, _ := serve(t, RequireUser, func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, RequireUser, withCookie("customer-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	rec, _ := serve(t, RequireAdmin, func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, RequireAdmin, withCookie("customer-token"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = serve(t, RequireAdmin, withCookie("admin-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCookies(t *testing.T) {
	c := CreateCookie(CookieName, "tok", "/", time.Now().Add(time.Hour), true)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	d := DeleteCookie(CookieName, "/", false)
	assert.Equal(t, -1, d.MaxAge)
	assert.Empty(t, d.Value)
	assert.False(t, d.Secure)
}

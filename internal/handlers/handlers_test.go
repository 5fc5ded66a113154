package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/db/dbtest"
	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/events"
	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/service"
)

func TestHTTPErrorMapping(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrEmailAlreadyExists, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", domain.ErrForbidden), http.StatusUnauthorized},
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: \"exe\"", domain.ErrUnsupportedExtension), http.StatusUnsupportedMediaType},
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{domain.ErrValidation, http.StatusBadRequest},
		{service.ErrToggleConflict, http.StatusConflict},
		{echo.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{errors.New("open /var/lib/uploads/x: permission denied"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, HTTPError(c, tc.err).Code, tc.err.Error())
	}
}

func TestErrorHandlerHidesInternals(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	ErrorHandler(errors.New("open /var/lib/uploads/x: permission denied"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"something went wrong"}`, rec.Body.String())
}

func TestErrorHandlerForbiddenForSignedInUser(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/admin", nil), rec)
	c.Set("identity", domain.Identity{UserID: 7, Email: "u@x.com", Role: domain.RoleCustomer})

	ErrorHandler(domain.ErrForbidden, c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestErrorHandlerKeepsStarShape(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/star_product/4", nil), rec)
	c.SetPath(StarPath)

	ErrorHandler(echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token"), c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success":false,"starred":false,"message":"invalid CSRF token"}`, rec.Body.String())
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRegisterHandler(t *testing.T) {
	r := repo.New(dbtest.Open(t))
	rec := &events.Recorder{}
	h := &AuthHandler{
		Auth:   &service.AuthService{Repo: r, Secret: []byte("s"), SessionTTL: time.Hour, MinPasswordLength: 6},
		Events: rec,
	}

	body, _ := json.Marshal(map[string]string{"email": " Test_User@Example.com ", "password": "password"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res := httptest.NewRecorder()

	require.NoError(t, h.Register(e.NewContext(req, res)))
	require.Equal(t, http.StatusCreated, res.Code)

	var out AuthResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "test_user@example.com", out.User.Email)
	assert.Equal(t, "customer", out.User.Role)
	assert.False(t, out.User.IsAdmin)
	assert.NotContains(t, res.Body.String(), "password")

	published := rec.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TopicUsers, published[0].Topic)

	req = httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Register(e.NewContext(req, httptest.NewRecorder()))
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestProductViewURLs(t *testing.T) {
	p := models.Product{ID: 3, Name: "Sofa", ImageKey: "ab12cd34_sofa.png"}
	v := productView(p, map[uint]bool{3: true})

	assert.Equal(t, "/uploads/ab12cd34_sofa.png", v.ImageURL)
	assert.Empty(t, v.PDFURL)
	assert.True(t, v.Starred)
}

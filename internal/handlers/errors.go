package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	authmw "github.com/Skotchmaster/product_catalog/internal/middleware/auth"
	"github.com/Skotchmaster/product_catalog/internal/service"
	"github.com/Skotchmaster/product_catalog/internal/storage"
)

// HTTPError maps a service error onto the status and message the caller sees.
// Anything unrecognised becomes a bare 500 so internals never leak.
func HTTPError(c echo.Context, err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password").SetInternal(err)
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "an account with this email already exists").SetInternal(err)
	case errors.Is(err, domain.ErrForbidden):
		return authmw.DeniedError(authmw.IdentityFrom(c), err)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
		return echo.NewHTTPError(http.StatusNotFound, "not found").SetInternal(err)
	case errors.Is(err, domain.ErrUnsupportedExtension):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error()).SetInternal(err)
	case errors.Is(err, domain.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error()).SetInternal(err)
	case errors.Is(err, domain.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, service.ErrToggleConflict):
		return echo.NewHTTPError(http.StatusConflict, "please try again").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "something went wrong").SetInternal(err)
	}
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		if he.Code < http.StatusInternalServerError {
			return m.Error()
		}
	case nil:
	default:
		if he.Code < http.StatusInternalServerError {
			return fmt.Sprint(m)
		}
	}
	return http.StatusText(he.Code)
}

// ErrorHandler renders every error as {"success": false, "message": ...}. Errors
// raised by middleware on the star route keep the star response shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he := HTTPError(c, err)
	if he.Code == http.StatusTooManyRequests && c.Response().Header().Get("Retry-After") == "" {
		c.Response().Header().Set("Retry-After", strconv.Itoa(60))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	if c.Path() == StarPath {
		_ = c.JSON(he.Code, StarResponse{Success: false, Starred: false, Message: messageOf(he)})
		return
	}
	_ = c.JSON(he.Code, fail(messageOf(he)))
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, c.Param("id"))
	}
	return uint(id), nil
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/events"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	authmw "github.com/Skotchmaster/product_catalog/internal/middleware/auth"
	"github.com/Skotchmaster/product_catalog/internal/service"
)

const publishTimeout = 5 * time.Second

type AuthHandler struct {
	Auth         *service.AuthService
	Events       events.Publisher
	CookieSecure bool
}

type credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (h *AuthHandler) publish(c echo.Context, typ string, id domain.Identity) {
	if h.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), publishTimeout)
	defer cancel()
	event := events.UserEvent{Type: typ, UserID: id.UserID, Email: id.Email, At: time.Now().UTC()}
	if err := h.Events.PublishEvent(ctx, events.TopicUsers, events.Key(id.UserID), event); err != nil {
		logging.FromContext(ctx).Error("publish_event_failed", "topic", events.TopicUsers, "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req credentials
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	id := domain.Identity{UserID: user.ID, Email: user.Email, Role: domain.Role(user.Role)}
	h.publish(c, "user_registered", id)

	l.Info("register_success", "status", 201, "user_id", user.ID)
	return c.JSON(http.StatusCreated, AuthResponse{
		Envelope: ok("registration successful, please log in"),
		User:     userView(id),
		Redirect: "/login",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req credentials
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	c.SetCookie(authmw.CreateCookie(authmw.CookieName, res.Token, "/", res.ExpiresAt, h.CookieSecure))
	h.publish(c, "user_logged_in", res.Identity)

	redirect := "/"
	if res.Identity.IsAdmin() {
		redirect = "/admin"
	}
	l.Info("login_success", "status", 200, "user_id", res.Identity.UserID)
	return c.JSON(http.StatusOK, AuthResponse{
		Envelope:  ok("logged in"),
		User:      userView(res.Identity),
		Redirect:  redirect,
		ExpiresAt: &res.ExpiresAt,
	})
}

// Logout revokes the presented session, if any, and always clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if token := authmw.TokenFrom(c); token != "" {
		if err := h.Auth.Logout(ctx, token); err != nil {
			return err
		}
	}
	c.SetCookie(authmw.DeleteCookie(authmw.CookieName, "/", h.CookieSecure))
	return c.JSON(http.StatusOK, AuthResponse{Envelope: ok("logged out"), Redirect: "/"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	actor := authmw.IdentityFrom(c)
	return c.JSON(http.StatusOK, AuthResponse{Envelope: ok(""), User: userView(actor)})
}

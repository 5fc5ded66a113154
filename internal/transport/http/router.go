package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/product_catalog/internal/handlers"
	authmw "github.com/Skotchmaster/product_catalog/internal/middleware/auth"
	"github.com/Skotchmaster/product_catalog/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/product_catalog/internal/middleware/logging"
)

type Deps struct {
	AuthHandler      *handlers.AuthHandler
	ProductHandler   *handlers.ProductHandler
	SearchHandler    *handlers.SearchHandler
	FavoritesHandler *handlers.FavoritesHandler
	FilesHandler     *handlers.FilesHandler
	Session          *authmw.Session
	LoginLimiter     echo.MiddlewareFunc
	StarGuard        echo.MiddlewareFunc
	Ready            func(ctx context.Context) error
}

type Options struct {
	Logger     *slog.Logger
	BodyLimit  string
	CSRF       *csrf.Config
	HSTSMaxAge int
}

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders(hstsMaxAge int) echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            hstsMaxAge,
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; media-src 'self'; object-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	})
}

// New builds the echo instance with the full middleware chain and every route.
// A nil opts.CSRF turns CSRF protection off; otherwise the GET star toggle also
// needs the token.
func New(d *Deps, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if opts.Logger != nil {
		e.Use(loggingmw.RequestLogger(opts.Logger))
	}
	e.Use(SecurityHeaders(opts.HSTSMaxAge))
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}
	if opts.CSRF != nil {
		e.Use(csrf.Middleware(*opts.CSRF)...)
		if d.StarGuard == nil {
			d.StarGuard = csrf.RequireToken(*opts.CSRF)
		}
	}
	e.Use(d.Session.Load)

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/", d.ProductHandler.Index)
	e.GET("/products/:id", d.ProductHandler.GetProduct)
	e.GET("/search", d.SearchHandler.Handler)
	e.GET("/uploads/:filename", d.FilesHandler.Serve)

	var loginMW []echo.MiddlewareFunc
	if d.LoginLimiter != nil {
		loginMW = append(loginMW, d.LoginLimiter)
	}
	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login, loginMW...)
	e.GET("/logout", d.AuthHandler.Logout)
	e.POST("/logout", d.AuthHandler.Logout)
	e.GET("/me", d.AuthHandler.Me)

	e.GET("/user/dashboard", d.FavoritesHandler.List, authmw.RequireUser)
	e.GET("/favorites", d.FavoritesHandler.List, authmw.RequireUser)
	var starMW []echo.MiddlewareFunc
	if d.StarGuard != nil {
		starMW = append(starMW, d.StarGuard)
	}
	e.GET(handlers.StarPath, d.FavoritesHandler.Star, starMW...)
	e.POST(handlers.StarPath, d.FavoritesHandler.Star)

	admin := e.Group("/admin", authmw.RequireAdmin)

	admin.GET("", d.ProductHandler.Dashboard)
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PUT("/products/:id", d.ProductHandler.ReplaceProduct)
	admin.POST("/products/:id/delete", d.ProductHandler.DeleteProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
}

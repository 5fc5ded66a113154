package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/logging"
	authmw "github.com/Skotchmaster/product_catalog/internal/middleware/auth"
	"github.com/Skotchmaster/product_catalog/internal/service"
)

// StarPath is the route of the star toggle.
const StarPath = "/star_product/:id"

type FavoritesHandler struct {
	Favorites *service.FavoritesService
}

// Star toggles the caller's star on a product. Every outcome, including
// failures, is answered with the same {success, starred, message} shape.
func (h *FavoritesHandler) Star(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return h.starError(c, err)
	}
	starred, err := h.Favorites.Toggle(ctx, authmw.IdentityFrom(c), id)
	if err != nil {
		return h.starError(c, err)
	}
	msg := "product unstarred"
	if starred {
		msg = "product starred"
	}
	return c.JSON(http.StatusOK, StarResponse{Success: true, Starred: starred, Message: msg})
}

func (h *FavoritesHandler) starError(c echo.Context, err error) error {
	he := HTTPError(c, err)
	if he.Code >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("star_failed", "status", he.Code, "error", err)
	}
	return c.JSON(he.Code, StarResponse{Success: false, Starred: false, Message: messageOf(he)})
}

func (h *FavoritesHandler) List(c echo.Context) error {
	products, err := h.Favorites.ListFavorites(c.Request().Context(), authmw.IdentityFrom(c))
	if err != nil {
		return err
	}
	starred := make(map[uint]bool, len(products))
	for _, p := range products {
		starred[p.ID] = true
	}
	return c.JSON(http.StatusOK, ProductListResponse{Envelope: ok(""), Products: productViews(products, starred)})
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/service"
)

type SearchHandler struct {
	Catalog *service.CatalogService
}

func NewSearchHandler(catalog *service.CatalogService) *SearchHandler {
	return &SearchHandler{Catalog: catalog}
}

func (h *SearchHandler) Handler(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	products, err := h.Catalog.Search(c.Request().Context(), q, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProductListResponse{Envelope: ok(""), Products: productViews(products, nil)})
}

package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	authmw "github.com/Skotchmaster/product_catalog/internal/middleware/auth"
	"github.com/Skotchmaster/product_catalog/internal/service"
)

type ProductHandler struct {
	Catalog   *service.CatalogService
	Favorites *service.FavoritesService
}

func starredSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Index lists every product, newest first, with the caller's stars marked.
func (h *ProductHandler) Index(c echo.Context) error {
	ctx := c.Request().Context()
	actor := authmw.IdentityFrom(c)

	products, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	ids, err := h.Favorites.StarredIDs(ctx, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProductListResponse{
		Envelope:   ok(""),
		Products:   productViews(products, starredSet(ids)),
		StarredIDs: ids,
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.Catalog.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	ids, err := h.Favorites.StarredIDs(ctx, authmw.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProductResponse{Envelope: ok(""), Product: productView(*p, starredSet(ids))})
}

func (h *ProductHandler) Dashboard(c echo.Context) error {
	stats, err := h.Catalog.Dashboard(c.Request().Context(), authmw.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DashboardResponse{
		Envelope:  ok(""),
		Products:  productViews(stats.Products, nil),
		Users:     stats.Users,
		Favorites: stats.Favorites,
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_create")

	fields, err := productFields(c)
	if err != nil {
		return err
	}
	files, err := fileUploads(c)
	if err != nil {
		return err
	}
	p, err := h.Catalog.AddProduct(ctx, authmw.IdentityFrom(c), fields, files)
	if err != nil {
		return err
	}
	l.Info("product_created", "status", 201, "product_id", p.ID)
	return c.JSON(http.StatusCreated, ProductResponse{Envelope: ok("product added"), Product: productView(*p, nil)})
}

func (h *ProductHandler) ReplaceProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_replace")

	id, err := parseID(c)
	if err != nil {
		return err
	}
	fields, err := productFields(c)
	if err != nil {
		return err
	}
	files, err := fileUploads(c)
	if err != nil {
		return err
	}
	p, err := h.Catalog.ReplaceProduct(ctx, authmw.IdentityFrom(c), id, fields, files)
	if err != nil {
		return err
	}
	l.Info("product_replaced", "status", 200, "product_id", p.ID)
	return c.JSON(http.StatusOK, ProductResponse{Envelope: ok("product updated"), Product: productView(*p, nil)})
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteProduct(ctx, authmw.IdentityFrom(c), id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("product_deleted", "status", 200, "product_id", id)
	return c.JSON(http.StatusOK, ok("product deleted"))
}

func productFields(c echo.Context) (service.ProductFields, error) {
	f := service.ProductFields{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
	}
	// An absent price means 0.
	raw := strings.TrimSpace(c.FormValue("price"))
	if raw == "" {
		return f, nil
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return f, fmt.Errorf("%w: price must be a number", domain.ErrValidation)
	}
	f.Price = price
	return f, nil
}

// fileUploads collects the optional image, pdf and video parts of a multipart form.
func fileUploads(c echo.Context) ([]service.FileUpload, error) {
	var files []service.FileUpload
	for _, slot := range service.FileSlots {
		fh, err := c.FormFile(string(slot))
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			continue
		case err != nil:
			return nil, fmt.Errorf("%w: cannot read %s upload", domain.ErrValidation, slot)
		case fh.Filename == "" && fh.Size == 0:
			continue
		}
		files = append(files, service.FileUpload{
			Slot:     slot,
			Filename: fh.Filename,
			Size:     fh.Size,
			Open:     opener(fh),
		})
	}
	return files, nil
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}

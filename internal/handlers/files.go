package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	"github.com/Skotchmaster/product_catalog/internal/storage"
)

type FilesHandler struct {
	Store storage.Store
}

// Serve streams a stored upload. Keys that are not plain file names never reach
// the store, so nothing outside the upload area can be addressed.
func (h *FilesHandler) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	key := c.Param("filename")
	if !storage.ValidKey(key) {
		logging.FromContext(ctx).Warn("file_rejected", "status", 404, "reason", "invalid key", "key", key)
		return domain.ErrNotFound
	}

	obj, err := h.Store.Open(ctx, key)
	if err != nil {
		return err
	}
	defer obj.Close()

	c.Response().Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Response(), c.Request(), obj.Name, obj.ModTime, obj)
	return nil
}

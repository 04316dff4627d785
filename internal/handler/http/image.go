package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/catalog/internal/storage"
	apperrors "github.com/shopcore/catalog/pkg/errors"
	"github.com/shopcore/catalog/pkg/httputil"
)

// ImageHandler serves stored product images.
type ImageHandler struct {
	images storage.Storage
	logger *slog.Logger
}

// NewImageHandler creates a new image HTTP handler.
func NewImageHandler(images storage.Storage, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images: images,
		logger: logger,
	}
}

// ServeImage handles GET /images/products/{name}
func (h *ImageHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := storage.ValidateName(name); err != nil {
		h.fail(w, r, err)
		return
	}

	ok, err := h.images.Exists(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.fail(w, r, apperrors.NotFound("image", name))
		return
	}

	http.ServeFile(w, r, h.images.Path(name))
}

// fail writes an error envelope that must not be cached.
func (h *ImageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Del("Cache-Control")
	httputil.WriteError(w, r, err, h.logger)
}

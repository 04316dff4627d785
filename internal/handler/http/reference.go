package http

import (
	"log/slog"
	"net/http"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/service"
	"github.com/shopcore/catalog/pkg/httputil"
)

// ReferenceHandler handles HTTP requests for category and brand listings.
type ReferenceHandler struct {
	service *service.ReferenceService
	logger  *slog.Logger
}

// NewReferenceHandler creates a new reference HTTP handler.
func NewReferenceHandler(svc *service.ReferenceService, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		service: svc,
		logger:  logger,
	}
}

// ListCategories handles GET /api/v1/categories
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/categories [get]
func (h *ReferenceHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.ReferenceCategory)
}

// ListBrands handles GET /api/v1/brands
// @Summary List brands
// @Tags brands
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/brands [get]
func (h *ReferenceHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.ReferenceBrand)
}

func (h *ReferenceHandler) list(w http.ResponseWriter, r *http.Request, kind domain.ReferenceKind) {
	refs, err := h.service.ListReferences(r.Context(), kind)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: refs})
}

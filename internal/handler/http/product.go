package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/catalog/internal/service"
	"github.com/shopcore/catalog/pkg/httputil"
	"github.com/shopcore/catalog/pkg/logger"
	"github.com/shopcore/catalog/pkg/pagination"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	uploads UploadConfig
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, uploads UploadConfig, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		uploads: uploads,
		logger:  logger,
	}
}

// ListProducts handles GET /api/v1/products
// @Summary List products
// @Description Returns a window of products matching the optional filters
// @Tags products
// @Produce json
// @Param skip query int false "Number of products to skip" default(0)
// @Param limit query int false "Window size (max 100)" default(10)
// @Param q query string false "Case-insensitive name substring"
// @Param category query string false "Category name"
// @Param brands query string false "Brand name"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/products [get]
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	window, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: err.Error()},
		})
		return
	}

	q := r.URL.Query()
	params := service.ListParams{
		Skip:     window.Skip,
		Limit:    window.Limit,
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Brands:   q.Get("brands"),
	}

	products, total, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(products, total))
}

// GetProduct handles GET /api/v1/products/{id}
// @Summary Get product by ID
// @Description Returns a product with its category and brand expanded
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{id} [get]
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: detail})
}

// CreateProduct handles POST /api/v1/products
// @Summary Create a product
// @Description Creates a product from a JSON body or a multipart form whose
// @Description images are paired with the colors entries by position
// @Tags products
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/products [post]
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, files, err := readProductInput(w, r, h.uploads)
	defer discardUploads(h.logger, r, files)
	if err != nil {
		h.writeInputError(w, r, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// UpdateProduct handles PUT /api/v1/products/{id}, PUT
// /api/v1/products/{id}/colors/{colorId} and PUT
// /api/v1/products/{id}/colors/{colorId}/sizes/{sizeId}.
// @Summary Update a product, one of its colors or one size of a color
// @Tags products
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/products/{id} [put]
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	target := service.UpdateTarget{
		ProductID: chi.URLParam(r, "id"),
		ColorID:   chi.URLParam(r, "colorId"),
		SizeID:    chi.URLParam(r, "sizeId"),
	}

	in, files, err := readProductInput(w, r, h.uploads)
	defer discardUploads(h.logger, r, files)
	if err != nil {
		h.writeInputError(w, r, err)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), target, in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// DeleteProduct handles DELETE /api/v1/products/{id}
// @Summary Delete a product
// @Description Deletes a product and the images of its colors
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{id} [delete]
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseObjectID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

func (h *ProductHandler) writeInputError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:      "PAYLOAD_TOO_LARGE",
				Message:   "request body is too large",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}

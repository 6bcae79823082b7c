// Package rest provides HTTP handlers for catalog operations.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/petcatalog/internal/errors"
	"github.com/abgdnv/petcatalog/internal/service"
	"github.com/abgdnv/petcatalog/internal/store"
	"github.com/abgdnv/petcatalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

type Handler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the catalog routes. Mutating routes are wrapped with authorize.
func (h *Handler) RegisterRoutes(r chi.Router, authorize func(http.Handler) http.Handler) {
	r.Route("/api/product", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Get("/{id}", h.FindByID)

		r.Group(func(r chi.Router) {
			r.Use(authorize)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/sell", h.Sell)
		})
	})

	r.Get("/api/status", h.Status)
	r.Get("/healthz", h.HealthCheck)
}

// FindByID retrieves a product by its ID.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)
	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id, http.StatusBadRequest, "retrieve product")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// FindAll lists products, optionally filtered by the active and in_stock flags.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	limit, ok := web.ParseOptionalInt(r, w, mLogger, "limit", defaultLimit, web.Between(1, maxLimit))
	if !ok {
		return
	}
	offset, ok := web.ParseOptionalInt(r, w, mLogger, "offset", 0, web.Gte(0))
	if !ok {
		return
	}
	active, ok := web.ParseOptionalBool(r, w, mLogger, "active")
	if !ok {
		return
	}
	inStock, ok := web.ParseOptionalBool(r, w, mLogger, "in_stock")
	if !ok {
		return
	}

	filter := store.ListFilter{
		Active:  active,
		InStock: inStock != nil && *inStock,
		Limit:   limit,
		Offset:  offset,
	}
	mLogger.DebugContext(r.Context(), "Received request to list products", "limit", limit, "offset", offset)
	list, err := h.service.FindAll(r.Context(), filter)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	var dto service.ProductCreateDto
	if !h.decode(w, r, mLogger, &dto) {
		return
	}

	created, err := h.service.Create(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, 0, http.StatusUnprocessableEntity, "create product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// Update applies a partial update to a product.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var dto service.ProductUpdateDto
	if !h.decode(w, r, mLogger, &dto) {
		return
	}

	updated, err := h.service.Update(r.Context(), id, dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id, http.StatusUnprocessableEntity, "update product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// Delete removes a product permanently.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, mLogger, err, id, http.StatusBadRequest, "delete product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// Sell decrements the stock of a product by the requested quantity.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var dto service.SellDto
	if !h.decode(w, r, mLogger, &dto) {
		return
	}

	sold, err := h.service.Sell(r.Context(), id, dto.Quantity)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id, http.StatusBadRequest, "sell product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product sold", "ID", id, "quantity", dto.Quantity, "remaining", sold.Quantity)
	web.RespondJSON(w, mLogger, http.StatusOK, sold)
}

type statusResponse struct {
	DatabaseStatus bool `json:"database_status"`
}

// Status reports whether the product store is reachable.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	if err := h.service.Ping(r.Context()); err != nil {
		mLogger.ErrorContext(r.Context(), "Database is unreachable", "error", err)
		web.RespondJSON(w, mLogger, http.StatusOK, statusResponse{DatabaseStatus: false})
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, statusResponse{DatabaseStatus: true})
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decode reads a JSON body into dst and validates it. On failure the response is already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		if web.RespondValidationErrors(w, logger, http.StatusUnprocessableEntity, err) {
			return false
		}
		logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps service errors to HTTP statuses. invalidStatus is used for ErrInvalidArgument.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, id int64, invalidStatus int, action string) {
	var invalidArg *service.InvalidArgumentError
	switch {
	case errors.As(err, &invalidArg):
		logger.WarnContext(r.Context(), "Rejected invalid argument", "ID", id, "reason", invalidArg.Reason)
		web.RespondError(w, logger, invalidStatus, invalidArg.Reason)
	case errors.Is(err, perrors.ErrProductNotFound):
		logger.WarnContext(r.Context(), "Product not found", "ID", id)
		web.RespondError(w, logger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
	case errors.Is(err, perrors.ErrDuplicateName):
		logger.WarnContext(r.Context(), "Product name already taken", "ID", id, "error", err)
		web.RespondError(w, logger, http.StatusConflict, "Product with this name already exists")
	case errors.Is(err, perrors.ErrInsufficientStock):
		logger.WarnContext(r.Context(), "Insufficient stock", "ID", id, "error", err)
		web.RespondError(w, logger, http.StatusConflict, fmt.Sprintf("Insufficient stock for product with ID %d", id))
	case errors.Is(err, perrors.ErrProductInactive):
		logger.WarnContext(r.Context(), "Product is inactive", "ID", id)
		web.RespondError(w, logger, http.StatusConflict, fmt.Sprintf("Product with ID %d is not active", id))
	case errors.Is(err, perrors.ErrConcurrentModification):
		logger.WarnContext(r.Context(), "Gave up after repeated version conflicts", "ID", id)
		web.RespondError(w, logger, http.StatusConflict, fmt.Sprintf("Product with ID %d is being modified concurrently, retry later", id))
	default:
		logger.ErrorContext(r.Context(), "Failed to "+action, "ID", id, "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, "Failed to "+action)
	}
}

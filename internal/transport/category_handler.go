package transport

import (
	"errors"
	"net/http"
	"strconv"

	"repuestera/internal/middleware"
	"repuestera/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateCategoryRequest is the category insert payload
type CreateCategoryRequest struct {
	Nombre      string `json:"nombre" validate:"required,max=100"`
	Descripcion string `json:"descripcion"`
}

// UpdateCategoryRequest carries the allow-listed category fields
type UpdateCategoryRequest struct {
	Nombre      *string `json:"nombre"`
	Descripcion *string `json:"descripcion"`
}

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categories repository.CategoryRepository, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		logger:     logger,
	}
}

// RegisterRoutes registers all category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router, guards AdminGuards) {
	r.Route("/api/categories", func(r chi.Router) {
		// Public catalog structure
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		// Administrator surface
		r.Group(func(r chi.Router) {
			r.Use(guards.RequireAuth, guards.LoadAdmin)
			r.With(guards.Permission(middleware.ActionProductsRead)).Get("/{id}/stats", h.Stats)
			r.With(guards.Permission(middleware.ActionProductsCreate)).Post("/", h.Create)
			r.With(guards.Permission(middleware.ActionProductsUpdate)).Put("/{id}", h.Update)
			r.With(guards.Permission(middleware.ActionProductsDelete)).Delete("/{id}", h.Delete)
		})
	})
}

// List returns active categories; include_count=true adds live product counts.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	includeCount := false
	if v := r.URL.Query().Get("include_count"); v != "" {
		includeCount, _ = strconv.ParseBool(v)
	}

	categories, err := h.categories.FindAll(r.Context(), includeCount)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al listar categorías")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

// Get returns one category with its live product count.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	category, err := h.categories.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Categoría no encontrada")
			return
		}
		h.logger.Error("Failed to find category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al buscar categoría")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
	})
}

// Stats returns catalog aggregates scoped to the category.
func (h *CategoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	threshold := defaultLowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			threshold = parsed
		}
	}

	stats, err := h.categories.Stats(r.Context(), id, threshold)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Categoría no encontrada")
			return
		}
		h.logger.Error("Failed to compute category stats", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al calcular estadísticas")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"stats": stats,
	})
}

// Create inserts a new category.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	category, err := h.categories.Create(r.Context(), req.Nombre, req.Descripcion)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNameTaken) {
			middleware.RespondWithError(w, http.StatusConflict, "Nombre de categoría duplicado")
			return
		}
		h.logger.Error("Failed to create category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al crear categoría")
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Categoría creada exitosamente",
		"category": category,
	})
}

// Update changes name and/or description.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	var req UpdateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	category, err := h.categories.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Categoría no encontrada")
			return
		}
		h.logger.Error("Failed to find category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al buscar categoría")
		return
	}

	fields := map[string]interface{}{}
	if req.Nombre != nil {
		fields["name"] = *req.Nombre
	}
	if req.Descripcion != nil {
		fields["description"] = *req.Descripcion
	}

	if err := h.categories.Update(r.Context(), category, fields); err != nil {
		switch {
		case errors.Is(err, repository.ErrNoValidFields):
			middleware.RespondWithError(w, http.StatusBadRequest, "Sin campos válidos para actualizar")
		case errors.Is(err, repository.ErrCategoryNameTaken):
			middleware.RespondWithError(w, http.StatusConflict, "Nombre de categoría duplicado")
		default:
			h.logger.Error("Failed to update category", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Error al actualizar categoría")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Categoría actualizada exitosamente",
		"category": category,
	})
}

// Delete soft-deletes a category unless it still has active products.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	if err := h.categories.Deactivate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryHasProducts):
			middleware.RespondWithError(w, http.StatusConflict, "La categoría tiene productos activos")
		case errors.Is(err, repository.ErrCategoryNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "Categoría no encontrada")
		default:
			h.logger.Error("Failed to deactivate category", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Error al eliminar categoría")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Categoría eliminada exitosamente",
	})
}

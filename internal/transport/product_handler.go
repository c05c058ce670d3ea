package transport

import (
	"errors"
	"net/http"
	"strconv"

	"repuestera/internal/domain"
	"repuestera/internal/middleware"
	"repuestera/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	relatedProductsLimit     = 4
	defaultLowStockThreshold = 5
)

// CreateProductRequest is the insert payload. Optional fields are pointers
// so they persist as explicit NULLs.
type CreateProductRequest struct {
	Nombre      string     `json:"nombre" validate:"required,max=255"`
	Descripcion string     `json:"descripcion"`
	Precio      float64    `json:"precio" validate:"required,gt=0"`
	Stock       int        `json:"stock" validate:"gte=0"`
	Imagen      *string    `json:"imagen"`
	CategoriaID *uuid.UUID `json:"categoria_id"`
	Codigo      *string    `json:"codigo_producto"`
	Marca       *string    `json:"marca"`
	Modelo      *string    `json:"modelo"`
	AnioDesde   *int       `json:"año_desde"`
	AnioHasta   *int       `json:"año_hasta"`
}

// UpdateProductRequest carries partial updates; nil fields are left untouched.
type UpdateProductRequest struct {
	Nombre      *string    `json:"nombre"`
	Descripcion *string    `json:"descripcion"`
	Precio      *float64   `json:"precio" validate:"omitempty,gt=0"`
	Imagen      *string    `json:"imagen"`
	CategoriaID *uuid.UUID `json:"categoria_id"`
	Codigo      *string    `json:"codigo_producto"`
	Marca       *string    `json:"marca"`
	Modelo      *string    `json:"modelo"`
	AnioDesde   *int       `json:"año_desde"`
	AnioHasta   *int       `json:"año_hasta"`
}

// StockRequest mutates stock through one of the three dedicated operations.
type StockRequest struct {
	Operacion string `json:"operacion" validate:"required,oneof=set reducir aumentar"`
	Cantidad  int    `json:"cantidad"`
}

// ProductHandler handles HTTP requests for the product catalog
type ProductHandler struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products repository.ProductRepository, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger,
	}
}

// AdminGuards bundles the middleware chain for administrator-gated routes.
type AdminGuards struct {
	RequireAuth func(http.Handler) http.Handler
	LoadAdmin   func(http.Handler) http.Handler
	Permission  func(action string) func(http.Handler) http.Handler
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, guards AdminGuards) {
	r.Route("/api/products", func(r chi.Router) {
		// Public catalog
		r.Get("/", h.List)

		// Administrator reporting; registered before /{id} so the
		// "reports" segment never matches as an id.
		r.Route("/reports", func(r chi.Router) {
			r.Use(guards.RequireAuth, guards.LoadAdmin, guards.Permission(middleware.ActionProductsRead))
			r.Get("/low-stock", h.LowStockReport)
			r.Get("/out-of-stock", h.OutOfStockReport)
		})

		r.Get("/{id}", h.Get)

		// Administrator mutations
		r.Group(func(r chi.Router) {
			r.Use(guards.RequireAuth, guards.LoadAdmin)
			r.With(guards.Permission(middleware.ActionProductsCreate)).Post("/", h.Create)
			r.With(guards.Permission(middleware.ActionProductsUpdate)).Put("/{id}", h.Update)
			r.With(guards.Permission(middleware.ActionProductsUpdate)).Patch("/{id}/stock", h.UpdateStock)
			r.With(guards.Permission(middleware.ActionProductsDelete)).Delete("/{id}", h.Delete)
		})
	})
}

// List serves the paginated, filtered catalog listing.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePageLimit(r)
	query := r.URL.Query()

	filter := repository.ProductFilter{
		Search:    query.Get("search"),
		SortBy:    query.Get("order_by"),
		SortOrder: repository.SortOrder(query.Get("order_direction")),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	if v := query.Get("categoria_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "categoria_id inválido")
			return
		}
		filter.CategoryID = &id
	}
	if v := query.Get("min_price"); v != "" {
		if price, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinPrice = &price
		}
	}
	if v := query.Get("max_price"); v != "" {
		if price, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxPrice = &price
		}
	}
	if v := query.Get("in_stock"); v != "" {
		if inStock, err := strconv.ParseBool(v); err == nil {
			filter.InStock = &inStock
		}
	}

	products, err := h.products.FindAll(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al listar productos")
		return
	}

	total, err := h.products.Count(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to count products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al listar productos")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products":   products,
		"pagination": NewPagination(page, limit, total),
		"filters": map[string]interface{}{
			"categoria_id": filter.CategoryID,
			"search":       filter.Search,
			"min_price":    filter.MinPrice,
			"max_price":    filter.MaxPrice,
			"in_stock":     filter.InStock,
		},
	})
}

// Get returns one product with related products from its category.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	product, err := h.products.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Producto no encontrado")
			return
		}
		h.logger.Error("Failed to find product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al buscar producto")
		return
	}

	related, err := h.products.FindRelated(r.Context(), product, relatedProductsLimit)
	if err != nil {
		h.logger.Error("Failed to load related products", zap.Error(err))
		related = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product":          product,
		"related_products": related,
	})
}

// Create inserts a new product.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	product, err := h.products.Create(r.Context(), repository.CreateProductInput{
		Name:        req.Nombre,
		Description: req.Descripcion,
		Price:       req.Precio,
		Stock:       req.Stock,
		ImageURL:    req.Imagen,
		CategoryID:  req.CategoriaID,
		Code:        req.Codigo,
		Brand:       req.Marca,
		Model:       req.Modelo,
		YearFrom:    req.AnioDesde,
		YearTo:      req.AnioHasta,
	})
	if err != nil {
		h.respondProductError(w, err, "Error al crear producto")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Producto creado exitosamente",
		"product": product,
	})
}

// Update applies a partial update over the allow-listed columns.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	product, err := h.products.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Producto no encontrado")
			return
		}
		h.logger.Error("Failed to find product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al buscar producto")
		return
	}

	yearFrom := product.YearFrom
	yearTo := product.YearTo
	if req.AnioDesde != nil {
		yearFrom = req.AnioDesde
	}
	if req.AnioHasta != nil {
		yearTo = req.AnioHasta
	}
	if yearFrom != nil && yearTo != nil && *yearFrom > *yearTo {
		middleware.RespondWithError(w, http.StatusBadRequest, "Años inválidos")
		return
	}

	fields := map[string]interface{}{}
	if req.Nombre != nil {
		fields["name"] = *req.Nombre
	}
	if req.Descripcion != nil {
		fields["description"] = *req.Descripcion
	}
	if req.Precio != nil {
		fields["price"] = *req.Precio
	}
	if req.Imagen != nil {
		fields["image_url"] = *req.Imagen
	}
	if req.CategoriaID != nil {
		fields["category_id"] = *req.CategoriaID
	}
	if req.Codigo != nil {
		fields["code"] = *req.Codigo
	}
	if req.Marca != nil {
		fields["brand"] = *req.Marca
	}
	if req.Modelo != nil {
		fields["model"] = *req.Modelo
	}
	if req.AnioDesde != nil {
		fields["year_from"] = *req.AnioDesde
	}
	if req.AnioHasta != nil {
		fields["year_to"] = *req.AnioHasta
	}

	if err := h.products.Update(r.Context(), product, fields); err != nil {
		h.respondProductError(w, err, "Error al actualizar producto")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Producto actualizado exitosamente",
		"product": product,
	})
}

// UpdateStock mutates stock via set/reduce/increase operations.
func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	var req StockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	product, err := h.products.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Producto no encontrado")
			return
		}
		h.logger.Error("Failed to find product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al buscar producto")
		return
	}

	switch req.Operacion {
	case "set":
		err = h.products.UpdateStock(r.Context(), product, req.Cantidad)
	case "reducir":
		err = h.products.ReduceStock(r.Context(), product, req.Cantidad)
	case "aumentar":
		err = h.products.IncreaseStock(r.Context(), product, req.Cantidad)
	}
	if err != nil {
		h.respondProductError(w, err, "Error al actualizar stock")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Stock actualizado exitosamente",
		"product": product,
	})
}

// Delete soft-deletes a product.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	if err := h.products.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Producto no encontrado")
			return
		}
		h.logger.Error("Failed to deactivate product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al eliminar producto")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Producto eliminado exitosamente",
	})
}

// LowStockReport lists active products with stock between 1 and threshold.
func (h *ProductHandler) LowStockReport(w http.ResponseWriter, r *http.Request) {
	threshold := defaultLowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			middleware.RespondWithError(w, http.StatusBadRequest, "threshold inválido")
			return
		}
		threshold = parsed
	}

	products, err := h.products.LowStock(r.Context(), threshold)
	if err != nil {
		h.logger.Error("Failed to build low stock report", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al generar reporte")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"threshold": threshold,
		"products":  products,
	})
}

// OutOfStockReport lists active products with zero stock.
func (h *ProductHandler) OutOfStockReport(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.OutOfStock(r.Context())
	if err != nil {
		h.logger.Error("Failed to build out of stock report", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al generar reporte")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
	})
}

// respondProductError maps typed repository errors to HTTP statuses; anything
// unclassified is logged and returned as a generic 500.
func (h *ProductHandler) respondProductError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrInvalidYearRange):
		middleware.RespondWithError(w, http.StatusBadRequest, "Años inválidos")
	case errors.Is(err, repository.ErrDuplicateCode):
		middleware.RespondWithError(w, http.StatusConflict, "Código duplicado")
	case errors.Is(err, repository.ErrInvalidCategory):
		middleware.RespondWithError(w, http.StatusBadRequest, "Categoría inválida")
	case errors.Is(err, repository.ErrNoValidFields):
		middleware.RespondWithError(w, http.StatusBadRequest, "Sin campos válidos para actualizar")
	case errors.Is(err, repository.ErrNegativeStock):
		middleware.RespondWithError(w, http.StatusBadRequest, "El stock no puede ser negativo")
	case errors.Is(err, repository.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, "Cantidad inválida")
	case errors.Is(err, repository.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusBadRequest, "Stock insuficiente")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Producto no encontrado")
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

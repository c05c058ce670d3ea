package transport

import (
	"errors"
	"net/http"
	"time"

	"repuestera/internal/domain"
	"repuestera/internal/middleware"
	"repuestera/internal/repository"
	"repuestera/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CreateAdminRequest is the administrator creation payload; super-admin only.
type CreateAdminRequest struct {
	Nombre   string `json:"nombre" validate:"required,max=100"`
	Apellido string `json:"apellido" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Rol      string `json:"rol" validate:"required,oneof=admin super_admin"`
}

// UpdateAdminRequest carries the allow-listed administrator fields.
type UpdateAdminRequest struct {
	Nombre   *string `json:"nombre"`
	Apellido *string `json:"apellido"`
	Rol      *string `json:"rol" validate:"omitempty,oneof=admin super_admin"`
}

// AdminHandler handles the administrator-facing principal management surface.
type AdminHandler struct {
	customers repository.CustomerRepository
	admins    repository.AdminRepository
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	customers repository.CustomerRepository,
	admins repository.AdminRepository,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		customers: customers,
		admins:    admins,
		logger:    logger,
	}
}

// RegisterRoutes registers the user and administrator management routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router, guards AdminGuards, superAdmin func(http.Handler) http.Handler) {
	r.Route("/api/users", func(r chi.Router) {
		r.Use(guards.RequireAuth, guards.LoadAdmin)
		r.With(guards.Permission(middleware.ActionUsersRead)).Get("/", h.ListCustomers)
		r.With(guards.Permission(middleware.ActionUsersDelete)).Delete("/{id}", h.DeactivateCustomer)
	})

	r.Route("/api/admins", func(r chi.Router) {
		r.Use(guards.RequireAuth, guards.LoadAdmin, superAdmin)
		r.Get("/", h.ListAdmins)
		r.Post("/", h.CreateAdmin)
		r.Put("/{id}", h.UpdateAdmin)
		r.Delete("/{id}", h.DeactivateAdmin)
	})
}

// ListCustomers returns registered customers with pagination.
func (h *AdminHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePageLimit(r)

	customers, total, err := h.customers.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("Failed to list customers", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al listar usuarios")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"users":      customers,
		"pagination": NewPagination(page, limit, total),
	})
}

// DeactivateCustomer soft-deletes a customer account.
func (h *AdminHandler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	if err := h.customers.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		}
		h.logger.Error("Failed to deactivate customer", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al desactivar usuario")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Usuario desactivado exitosamente",
	})
}

// ListAdmins returns all administrator accounts.
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list administrators", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al listar administradores")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"admins": admins,
	})
}

// CreateAdmin creates a new administrator account.
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), service.BcryptCost)
	if err != nil {
		h.logger.Error("Failed to hash administrator password", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al crear administrador")
		return
	}

	admin := &domain.Administrator{
		ID:           uuid.New(),
		FirstName:    req.Nombre,
		LastName:     req.Apellido,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Rol,
		Active:       true,
		CreatedAt:    time.Now(),
	}

	if err := h.admins.Create(r.Context(), admin); err != nil {
		if errors.Is(err, repository.ErrAdminEmailTaken) {
			middleware.RespondWithError(w, http.StatusConflict, "El email ya está registrado")
			return
		}
		h.logger.Error("Failed to create administrator", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al crear administrador")
		return
	}

	h.logger.Info("Administrator created",
		zap.String("admin_id", admin.ID.String()),
		zap.String("role", admin.Role),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Administrador creado exitosamente",
		"admin":   admin,
	})
}

// UpdateAdmin changes allow-listed administrator fields.
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	var req UpdateAdminRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	admin, err := h.admins.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Administrador no encontrado")
			return
		}
		h.logger.Error("Failed to find administrator", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al buscar administrador")
		return
	}

	fields := map[string]interface{}{}
	if req.Nombre != nil {
		fields["first_name"] = *req.Nombre
	}
	if req.Apellido != nil {
		fields["last_name"] = *req.Apellido
	}
	if req.Rol != nil {
		fields["role"] = *req.Rol
	}

	if err := h.admins.Update(r.Context(), admin, fields); err != nil {
		if errors.Is(err, repository.ErrNoValidFields) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Sin campos válidos para actualizar")
			return
		}
		h.logger.Error("Failed to update administrator", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al actualizar administrador")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Administrador actualizado exitosamente",
		"admin":   admin,
	})
}

// DeactivateAdmin soft-deletes an administrator account.
func (h *AdminHandler) DeactivateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "ID inválido")
		return
	}

	if err := h.admins.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Administrador no encontrado")
			return
		}
		h.logger.Error("Failed to deactivate administrator", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al desactivar administrador")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Administrador desactivado exitosamente",
	})
}

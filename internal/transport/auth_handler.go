package transport

import (
	"errors"
	"net/http"

	"repuestera/internal/domain"
	"repuestera/internal/middleware"
	"repuestera/internal/repository"
	"repuestera/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the self-registration payload
type RegisterRequest struct {
	Nombre    string  `json:"nombre" validate:"required,max=100"`
	Apellido  string  `json:"apellido" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	Telefono  *string `json:"telefono"`
	Direccion *string `json:"direccion"`
}

// LoginRequest represents the login payload for both principal kinds
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdateRequest carries the allow-listed profile fields. Email and
// password change through dedicated flows.
type ProfileUpdateRequest struct {
	Nombre    *string `json:"nombre"`
	Apellido  *string `json:"apellido"`
	Telefono  *string `json:"telefono"`
	Direccion *string `json:"direccion"`
}

// AuthResponse is the envelope for successful registration and login
type AuthResponse struct {
	Message   string      `json:"message"`
	User      interface{} `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
}

// AuthHandler handles HTTP requests for authentication flows
type AuthHandler struct {
	authService service.AuthService
	customers   repository.CustomerRepository
	admins      repository.AdminRepository
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	authService service.AuthService,
	customers repository.CustomerRepository,
	admins repository.AdminRepository,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		customers:   customers,
		admins:      admins,
		logger:      logger,
	}
}

// RegisterRoutes registers all authentication routes. rateLimit may be nil
// when no limiter is configured.
func (h *AuthHandler) RegisterRoutes(r chi.Router, requireAuth, loadCustomer, rateLimit func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		if rateLimit != nil {
			r.Use(rateLimit)
		}

		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/admin/login", h.AdminLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, loadCustomer)
			r.Put("/profile", h.UpdateProfile)
		})
	})
}

// Register handles customer self-registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	customer, result, err := h.authService.RegisterCustomer(r.Context(), service.RegisterInput{
		FirstName: req.Nombre,
		LastName:  req.Apellido,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Telefono,
		Address:   req.Direccion,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			middleware.RespondWithError(w, http.StatusBadRequest, "El email ya está registrado")
			return
		}
		h.logger.Error("Registration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al registrar usuario")
		return
	}

	h.logger.Info("Customer registered", zap.String("customer_id", customer.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, AuthResponse{
		Message:   "Usuario registrado exitosamente",
		User:      customer,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// Login handles customer authentication. Unknown email, wrong password, and
// deactivated account are deliberately indistinguishable.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	customer, result, err := h.authService.LoginCustomer(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al iniciar sesión")
		return
	}

	h.logger.Info("Customer logged in", zap.String("customer_id", customer.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, AuthResponse{
		Message:   "Inicio de sesión exitoso",
		User:      customer,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// AdminLogin authenticates against the administrators table with the same
// contract as Login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	admin, result, err := h.authService.LoginAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}
		h.logger.Error("Admin login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al iniciar sesión")
		return
	}

	h.logger.Info("Administrator logged in", zap.String("admin_id", admin.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, AuthResponse{
		Message:   "Inicio de sesión exitoso",
		User:      admin,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// Logout acknowledges the logout. Tokens are stateless with a TTL, so there
// is no server-side state to revoke; the client discards the token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Sesión cerrada exitosamente",
	})
}

// Me returns the principal behind the presented token along with its kind.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, middleware.MsgNoToken)
		return
	}

	var user interface{}
	switch claims.Type {
	case domain.PrincipalTypeCustomer:
		customer, err := h.customers.FindByID(r.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				middleware.RespondWithError(w, http.StatusNotFound, middleware.MsgPrincipalNotFound)
				return
			}
			h.logger.Error("Failed to load customer for /me", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "error interno")
			return
		}
		user = customer
	case domain.PrincipalTypeAdmin:
		admin, err := h.admins.FindByID(r.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, repository.ErrAdminNotFound) {
				middleware.RespondWithError(w, http.StatusNotFound, middleware.MsgPrincipalNotFound)
				return
			}
			h.logger.Error("Failed to load administrator for /me", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "error interno")
			return
		}
		user = admin
	default:
		middleware.RespondWithError(w, http.StatusForbidden, middleware.MsgWrongPrincipalType)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
		"type": claims.Type,
	})
}

// UpdateProfile changes the authenticated customer's allow-listed profile
// fields.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	customer, ok := middleware.GetCustomer(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusForbidden, middleware.MsgWrongPrincipalType)
		return
	}

	var req ProfileUpdateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "Cuerpo de solicitud inválido")
		return
	}

	fields := map[string]interface{}{}
	if req.Nombre != nil {
		fields["first_name"] = *req.Nombre
	}
	if req.Apellido != nil {
		fields["last_name"] = *req.Apellido
	}
	if req.Telefono != nil {
		fields["phone"] = *req.Telefono
	}
	if req.Direccion != nil {
		fields["address"] = *req.Direccion
	}

	if err := h.customers.UpdateProfile(r.Context(), customer, fields); err != nil {
		if errors.Is(err, repository.ErrNoValidFields) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Sin campos válidos para actualizar")
			return
		}
		h.logger.Error("Profile update failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error al actualizar perfil")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Perfil actualizado exitosamente",
		"user":    customer,
	})
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"repuestera/internal/domain"
	"repuestera/internal/repository"

	"go.uber.org/zap"
)

const (
	CustomerKey contextKey = "customer"
	AdminKey    contextKey = "admin"
)

const (
	MsgWrongPrincipalType = "Acceso denegado"
	MsgPrincipalNotFound  = "Cuenta no encontrada"
	MsgDeactivated        = "Cuenta desactivada"
)

// LoadCustomer loads the customer referenced by the attached claims. Requires
// RequireAuth to have run first. Wrong principal type is 403, a vanished row
// is 404, a deactivated account is 403.
func LoadCustomer(customers repository.CustomerRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok || claims.Type != domain.PrincipalTypeCustomer {
				RespondWithError(w, http.StatusForbidden, MsgWrongPrincipalType)
				return
			}

			customer, err := customers.FindByID(r.Context(), claims.ID)
			if err != nil {
				if errors.Is(err, repository.ErrCustomerNotFound) {
					RespondWithError(w, http.StatusNotFound, MsgPrincipalNotFound)
					return
				}
				logger.Error("Failed to load customer", zap.Error(err))
				RespondWithError(w, http.StatusInternalServerError, "error interno")
				return
			}

			if !customer.Active {
				RespondWithError(w, http.StatusForbidden, MsgDeactivated)
				return
			}

			ctx := context.WithValue(r.Context(), CustomerKey, customer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadAdmin loads the administrator referenced by the attached claims and
// fires an asynchronous last-access touch before continuing. The touch runs
// on its own context so it survives the request and never blocks it.
func LoadAdmin(admins repository.AdminRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok || claims.Type != domain.PrincipalTypeAdmin {
				RespondWithError(w, http.StatusForbidden, MsgWrongPrincipalType)
				return
			}

			admin, err := admins.FindByID(r.Context(), claims.ID)
			if err != nil {
				if errors.Is(err, repository.ErrAdminNotFound) {
					RespondWithError(w, http.StatusNotFound, MsgPrincipalNotFound)
					return
				}
				logger.Error("Failed to load administrator", zap.Error(err))
				RespondWithError(w, http.StatusInternalServerError, "error interno")
				return
			}

			if !admin.Active {
				RespondWithError(w, http.StatusForbidden, MsgDeactivated)
				return
			}

			adminID := admin.ID
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := admins.TouchLastAccess(ctx, adminID); err != nil {
					logger.Warn("Failed to touch admin last access", zap.Error(err))
				}
			}()

			ctx := context.WithValue(r.Context(), AdminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCustomer extracts the loaded customer from the request context.
func GetCustomer(ctx context.Context) (*domain.Customer, bool) {
	customer, ok := ctx.Value(CustomerKey).(*domain.Customer)
	return customer, ok
}

// GetAdmin extracts the loaded administrator from the request context.
func GetAdmin(ctx context.Context) (*domain.Administrator, bool) {
	admin, ok := ctx.Value(AdminKey).(*domain.Administrator)
	return admin, ok
}

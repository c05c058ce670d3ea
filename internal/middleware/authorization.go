package middleware

import (
	"net/http"

	"repuestera/internal/domain"

	"go.uber.org/zap"
)

// Named actions gated by the permission table.
const (
	ActionProductsRead   = "products.read"
	ActionProductsCreate = "products.create"
	ActionProductsUpdate = "products.update"
	ActionProductsDelete = "products.delete"
	ActionUsersRead      = "users.read"
	ActionUsersCreate    = "users.create"
	ActionUsersUpdate    = "users.update"
	ActionUsersDelete    = "users.delete"
	ActionAdminsCreate   = "admins.create"
	ActionAdminsUpdate   = "admins.update"
	ActionAdminsDelete   = "admins.delete"
)

// rolePermissions is the static role → capability table, built once at
// startup. super_admin is a strict superset of admin.
var rolePermissions = map[string]map[string]bool{}

func init() {
	adminActions := []string{
		ActionProductsRead,
		ActionProductsCreate,
		ActionProductsUpdate,
		ActionProductsDelete,
		ActionUsersRead,
	}
	superAdminActions := append([]string{
		ActionUsersCreate,
		ActionUsersUpdate,
		ActionUsersDelete,
		ActionAdminsCreate,
		ActionAdminsUpdate,
		ActionAdminsDelete,
	}, adminActions...)

	rolePermissions[domain.RoleAdmin] = toSet(adminActions)
	rolePermissions[domain.RoleSuperAdmin] = toSet(superAdminActions)
}

func toSet(actions []string) map[string]bool {
	set := make(map[string]bool, len(actions))
	for _, action := range actions {
		set[action] = true
	}
	return set
}

// Can reports whether the role may perform the named action. Pure lookup
// into the static table; unknown roles have no capabilities.
func Can(role, action string) bool {
	return rolePermissions[role][action]
}

const msgInsufficientPermissions = "Permisos insuficientes"

// RequirePermission denies unless a loaded administrator may perform the
// named action. Requires LoadAdmin to have run first.
func RequirePermission(action string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, ok := GetAdmin(r.Context())
			if !ok {
				logger.Warn("Permission check without loaded administrator",
					zap.String("action", action),
				)
				RespondWithError(w, http.StatusForbidden, msgInsufficientPermissions)
				return
			}

			if !Can(admin.Role, action) {
				logger.Warn("Administrator lacks permission",
					zap.String("role", admin.Role),
					zap.String("action", action),
				)
				RespondWithError(w, http.StatusForbidden, msgInsufficientPermissions)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin denies unless the loaded administrator's role is exactly
// super_admin.
func RequireSuperAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, ok := GetAdmin(r.Context())
			if !ok || admin.Role != domain.RoleSuperAdmin {
				logger.Warn("Super admin gate denied")
				RespondWithError(w, http.StatusForbidden, msgInsufficientPermissions)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

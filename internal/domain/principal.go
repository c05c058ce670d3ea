package domain

import (
	"time"

	"github.com/google/uuid"
)

// Principal type discriminators carried inside issued tokens.
const (
	PrincipalTypeCustomer = "user"
	PrincipalTypeAdmin    = "admin"
)

// Administrator role tiers.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Customer is a storefront account created by self-registration.
type Customer struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FirstName    string    `json:"nombre" db:"first_name"`
	LastName     string    `json:"apellido" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Phone        *string   `json:"telefono,omitempty" db:"phone"`
	Address      *string   `json:"direccion,omitempty" db:"address"`
	Active       bool      `json:"activo" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Administrator is a back-office account with a role tier.
type Administrator struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	FirstName    string     `json:"nombre" db:"first_name"`
	LastName     string     `json:"apellido" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         string     `json:"rol" db:"role"`
	Active       bool       `json:"activo" db:"active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastAccessAt *time.Time `json:"ultimo_acceso,omitempty" db:"last_access_at"`
}

// Principal is the tagged union of the two account kinds. Exactly one of
// Customer/Admin is set, matching Type.
type Principal struct {
	Type     string
	Customer *Customer
	Admin    *Administrator
}

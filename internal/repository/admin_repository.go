package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"repuestera/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrAdminNotFound   = errors.New("administrator not found")
	ErrAdminEmailTaken = errors.New("administrator with this email already exists")
)

// AdminRepository defines the interface for administrator account data access
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Administrator) error
	FindByEmail(ctx context.Context, email string) (*domain.Administrator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Administrator, error)
	List(ctx context.Context) ([]*domain.Administrator, error)
	Update(ctx context.Context, admin *domain.Administrator, fields map[string]interface{}) error
	TouchLastAccess(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
}

type adminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new instance of AdminRepository
func NewAdminRepository(db *sql.DB) AdminRepository {
	return &adminRepository{db: db}
}

const adminColumns = `id, first_name, last_name, email, password_hash, role, active, created_at, last_access_at`

func scanAdmin(row rowScanner) (*domain.Administrator, error) {
	admin := &domain.Administrator{}
	err := row.Scan(
		&admin.ID,
		&admin.FirstName,
		&admin.LastName,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Role,
		&admin.Active,
		&admin.CreatedAt,
		&admin.LastAccessAt,
	)
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// Create inserts a new administrator using parameterized queries.
func (r *adminRepository) Create(ctx context.Context, admin *domain.Administrator) error {
	query := `
		INSERT INTO administrators (id, first_name, last_name, email, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		admin.ID,
		admin.FirstName,
		admin.LastName,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		admin.Active,
		admin.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "administrators_email_key") {
			return ErrAdminEmailTaken
		}
		return fmt.Errorf("failed to create administrator: %w", err)
	}

	return nil
}

// FindByEmail retrieves an administrator by email.
func (r *adminRepository) FindByEmail(ctx context.Context, email string) (*domain.Administrator, error) {
	query := "SELECT " + adminColumns + " FROM administrators WHERE email = $1"

	admin, err := scanAdmin(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to find administrator by email: %w", err)
	}

	return admin, nil
}

// FindByID retrieves an administrator by ID.
func (r *adminRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Administrator, error) {
	query := "SELECT " + adminColumns + " FROM administrators WHERE id = $1"

	admin, err := scanAdmin(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to find administrator by ID: %w", err)
	}

	return admin, nil
}

// List retrieves all administrators ordered by registration date.
func (r *adminRepository) List(ctx context.Context) ([]*domain.Administrator, error) {
	query := "SELECT " + adminColumns + " FROM administrators ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}
	defer rows.Close()

	admins := []*domain.Administrator{}
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan administrator: %w", err)
		}
		admins = append(admins, admin)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating administrators: %w", err)
	}

	return admins, nil
}

// Allow-listed columns for administrator updates.
var updatableAdminColumns = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"role":       true,
}

// Update changes allow-listed columns and refreshes the in-memory record.
func (r *adminRepository) Update(ctx context.Context, admin *domain.Administrator, fields map[string]interface{}) error {
	setClauses := []string{}
	args := []interface{}{admin.ID}
	argIndex := 2

	for column, value := range fields {
		if !updatableAdminColumns[column] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if len(setClauses) == 0 {
		return ErrNoValidFields
	}

	query := fmt.Sprintf("UPDATE administrators SET %s WHERE id = $1", strings.Join(setClauses, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update administrator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAdminNotFound
	}

	refreshed, err := r.FindByID(ctx, admin.ID)
	if err != nil {
		return err
	}
	*admin = *refreshed

	return nil
}

// TouchLastAccess records a successful authenticated request. Fired
// asynchronously by the admin principal loader; failures are non-fatal.
func (r *adminRepository) TouchLastAccess(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE administrators SET last_access_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to touch last access: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an administrator account. Idempotent.
func (r *adminRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, false)
}

// Activate restores a deactivated administrator account. Idempotent.
func (r *adminRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, true)
}

func (r *adminRepository) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE administrators SET active = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set administrator active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAdminNotFound
	}
	return nil
}

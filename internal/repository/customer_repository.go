package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"repuestera/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrEmailTaken       = errors.New("account with this email already exists")
)

// CustomerRepository defines the interface for customer account data access
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Customer, int, error)
	UpdateProfile(ctx context.Context, customer *domain.Customer, fields map[string]interface{}) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
}

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new instance of CustomerRepository
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, first_name, last_name, email, password_hash, phone, address, active, created_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	customer := &domain.Customer{}
	err := row.Scan(
		&customer.ID,
		&customer.FirstName,
		&customer.LastName,
		&customer.Email,
		&customer.PasswordHash,
		&customer.Phone,
		&customer.Address,
		&customer.Active,
		&customer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// Create inserts a new customer account using parameterized queries.
func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, first_name, last_name, email, password_hash, phone, address, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		customer.ID,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.PasswordHash,
		customer.Phone,
		customer.Address,
		customer.Active,
		customer.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "customers_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

// FindByEmail retrieves a customer by email using parameterized queries.
func (r *customerRepository) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE email = $1"

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by email: %w", err)
	}

	return customer, nil
}

// FindByID retrieves a customer by ID using parameterized queries.
func (r *customerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE id = $1"

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by ID: %w", err)
	}

	return customer, nil
}

// List retrieves customers ordered by registration date with pagination,
// returning the total count alongside the page.
func (r *customerRepository) List(ctx context.Context, limit, offset int) ([]*domain.Customer, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	query := "SELECT " + customerColumns + " FROM customers ORDER BY created_at DESC LIMIT $1 OFFSET $2"

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*domain.Customer{}
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, total, nil
}

// Allow-listed profile columns. Email and password change through dedicated
// flows, never through the profile update.
var updatableCustomerColumns = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"phone":      true,
	"address":    true,
}

// UpdateProfile changes allow-listed profile fields and refreshes the
// in-memory record.
func (r *customerRepository) UpdateProfile(ctx context.Context, customer *domain.Customer, fields map[string]interface{}) error {
	setClauses := []string{}
	args := []interface{}{customer.ID}
	argIndex := 2

	for column, value := range fields {
		if !updatableCustomerColumns[column] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if len(setClauses) == 0 {
		return ErrNoValidFields
	}

	query := fmt.Sprintf("UPDATE customers SET %s WHERE id = $1", strings.Join(setClauses, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update customer profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCustomerNotFound
	}

	refreshed, err := r.FindByID(ctx, customer.ID)
	if err != nil {
		return err
	}
	*customer = *refreshed

	return nil
}

// Deactivate soft-deletes a customer account; the row is never removed.
// Idempotent.
func (r *customerRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, false)
}

// Activate restores a deactivated customer account. Idempotent.
func (r *customerRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, true)
}

func (r *customerRepository) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE customers SET active = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set customer active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

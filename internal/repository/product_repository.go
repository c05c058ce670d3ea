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
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductCreateFailed = errors.New("product creation produced no row")
	ErrDuplicateCode       = errors.New("product with this code already exists")
	ErrInvalidYearRange    = errors.New("invalid applicable-year range")
	ErrInvalidCategory     = errors.New("referenced category does not exist")
	ErrNoValidFields       = errors.New("no valid fields to update")
	ErrNegativeStock       = errors.New("stock cannot be negative")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInsufficientStock   = errors.New("insufficient stock")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductFilter holds the combinable listing filters. Nil pointer fields mean
// "not filtered". The same filter drives FindAll and Count.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	MinPrice   *float64
	MaxPrice   *float64
	InStock    *bool
	SortBy     string
	SortOrder  SortOrder
	Limit      int
	Offset     int
}

// CreateProductInput carries the insert payload. Optional fields are pointers
// and are persisted as explicit NULLs when unset.
type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	ImageURL    *string
	CategoryID  *uuid.UUID
	Code        *string
	Brand       *string
	Model       *string
	YearFrom    *int
	YearTo      *int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	FindAll(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	Count(ctx context.Context, filter ProductFilter) (int, error)
	FindRelated(ctx context.Context, product *domain.Product, limit int) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product, fields map[string]interface{}) error
	UpdateStock(ctx context.Context, product *domain.Product, newValue int) error
	ReduceStock(ctx context.Context, product *domain.Product, qty int) error
	IncreaseStock(ctx context.Context, product *domain.Product, qty int) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
	LowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
	OutOfStock(ctx context.Context) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `
	p.id, p.name, p.description, p.price, p.stock, p.image_url,
	p.category_id, c.name AS category_name, p.code, p.brand, p.model,
	p.year_from, p.year_to, p.active, p.created_at, p.updated_at
`

const productJoin = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Stock,
		&product.ImageURL,
		&product.CategoryID,
		&product.CategoryName,
		&product.Code,
		&product.Brand,
		&product.Model,
		&product.YearFrom,
		&product.YearTo,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation on
// the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// Create inserts a new product and returns the freshly loaded record. The
// re-read (rather than echoing the payload) guarantees the caller sees the
// row exactly as persisted, including defaults and the joined category name.
func (r *productRepository) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if input.YearFrom != nil && input.YearTo != nil && *input.YearFrom > *input.YearTo {
		return nil, ErrInvalidYearRange
	}

	id := uuid.New()
	now := time.Now()

	query := `
		INSERT INTO products (id, name, description, price, stock, image_url,
			category_id, code, brand, model, year_from, year_to, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		id,
		input.Name,
		input.Description,
		input.Price,
		input.Stock,
		input.ImageURL,
		input.CategoryID,
		input.Code,
		input.Brand,
		input.Model,
		input.YearFrom,
		input.YearTo,
		now,
	)

	if err != nil {
		if isUniqueViolation(err, "products_code_key") {
			return nil, ErrDuplicateCode
		}
		if isForeignKeyViolation(err) {
			return nil, ErrInvalidCategory
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	product, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductCreateFailed
		}
		return nil, err
	}

	return product, nil
}

// FindByID retrieves a product by ID joined with its category name.
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := "SELECT " + productColumns + productJoin + " WHERE p.id = $1"

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByCode retrieves a product by its unique product code.
func (r *productRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	query := "SELECT " + productColumns + productJoin + " WHERE p.code = $1"

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by code: %w", err)
	}

	return product, nil
}

// buildFilterClause translates a ProductFilter into a WHERE clause and its
// arguments. Shared by FindAll and Count so both always agree.
func buildFilterClause(filter ProductFilter) (string, []interface{}) {
	conditions := []string{"p.active = TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		conditions = append(conditions, fmt.Sprintf(
			"(p.name ILIKE $%d OR p.description ILIKE $%d OR p.brand ILIKE $%d OR p.model ILIKE $%d OR p.code ILIKE $%d)",
			argIndex, argIndex, argIndex, argIndex, argIndex,
		))
		args = append(args, pattern)
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.InStock != nil {
		if *filter.InStock {
			conditions = append(conditions, "p.stock > 0")
		} else {
			conditions = append(conditions, "p.stock = 0")
		}
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// sortClause returns an ORDER BY clause restricted to an allow-list. Anything
// outside the list silently falls back to the default instead of failing.
func sortClause(sortBy string, sortOrder SortOrder) string {
	validSortFields := map[string]string{
		"name":       "p.name",
		"price":      "p.price",
		"stock":      "p.stock",
		"brand":      "p.brand",
		"created_at": "p.created_at",
	}

	column, ok := validSortFields[sortBy]
	if !ok {
		column = "p.created_at"
		sortOrder = SortOrderDesc
	}
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	return fmt.Sprintf("ORDER BY %s %s", column, sortOrder)
}

// FindAll retrieves active products matching the filter with pagination.
func (r *productRepository) FindAll(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	whereClause, args := buildFilterClause(filter)
	orderClause := sortClause(filter.SortBy, filter.SortOrder)

	query := fmt.Sprintf(
		"SELECT %s %s %s %s LIMIT $%d OFFSET $%d",
		productColumns, productJoin, whereClause, orderClause, len(args)+1, len(args)+2,
	)
	args = append(args, filter.Limit, filter.Offset)

	return r.queryProducts(ctx, query, args...)
}

// Count mirrors FindAll's filter set independent of pagination.
func (r *productRepository) Count(ctx context.Context, filter ProductFilter) (int, error) {
	whereClause, args := buildFilterClause(filter)

	query := fmt.Sprintf("SELECT COUNT(*) FROM products p %s", whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// FindRelated returns other active products from the same category.
func (r *productRepository) FindRelated(ctx context.Context, product *domain.Product, limit int) ([]*domain.Product, error) {
	if product.CategoryID == nil {
		return []*domain.Product{}, nil
	}

	query := "SELECT " + productColumns + productJoin + `
		WHERE p.category_id = $1 AND p.id <> $2 AND p.active = TRUE
		ORDER BY p.created_at DESC
		LIMIT $3
	`

	return r.queryProducts(ctx, query, *product.CategoryID, product.ID, limit)
}

// Allow-listed columns for Update. Anything else in the fields map is ignored.
var updatableProductColumns = map[string]bool{
	"name":        true,
	"description": true,
	"price":       true,
	"image_url":   true,
	"category_id": true,
	"code":        true,
	"brand":       true,
	"model":       true,
	"year_from":   true,
	"year_to":     true,
}

// Update changes an allow-listed set of columns and refreshes the in-memory
// record from a re-read.
func (r *productRepository) Update(ctx context.Context, product *domain.Product, fields map[string]interface{}) error {
	setClauses := []string{}
	args := []interface{}{product.ID}
	argIndex := 2

	for column, value := range fields {
		if !updatableProductColumns[column] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if len(setClauses) == 0 {
		return ErrNoValidFields
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now())

	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $1", strings.Join(setClauses, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "products_code_key") {
			return ErrDuplicateCode
		}
		if isForeignKeyViolation(err) {
			return ErrInvalidCategory
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	refreshed, err := r.FindByID(ctx, product.ID)
	if err != nil {
		return err
	}
	*product = *refreshed

	return nil
}

// UpdateStock persists a new stock value and refreshes the in-memory record.
func (r *productRepository) UpdateStock(ctx context.Context, product *domain.Product, newValue int) error {
	if newValue < 0 {
		return ErrNegativeStock
	}

	now := time.Now()
	query := `UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, product.ID, newValue, now)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	product.Stock = newValue
	product.UpdatedAt = now
	return nil
}

// ReduceStock decrements stock after validating against the in-memory value.
// The precondition check and the write are not atomic: the check runs against
// a potentially stale read and the UPDATE is last-write-wins.
func (r *productRepository) ReduceStock(ctx context.Context, product *domain.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > product.Stock {
		return ErrInsufficientStock
	}
	return r.UpdateStock(ctx, product, product.Stock-qty)
}

// IncreaseStock increments stock, delegating the write to UpdateStock.
func (r *productRepository) IncreaseStock(ctx context.Context, product *domain.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return r.UpdateStock(ctx, product, product.Stock+qty)
}

// Deactivate soft-deletes a product. Unlike categories, products carry no
// referential check. Idempotent.
func (r *productRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, false)
}

// Activate restores a soft-deleted product. Idempotent.
func (r *productRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, true)
}

func (r *productRepository) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE products SET active = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set product active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// LowStock lists active products with stock between 1 and threshold inclusive.
func (r *productRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	query := "SELECT " + productColumns + productJoin + `
		WHERE p.active = TRUE AND p.stock BETWEEN 1 AND $1
		ORDER BY p.stock ASC
	`
	return r.queryProducts(ctx, query, threshold)
}

// OutOfStock lists active products with zero stock.
func (r *productRepository) OutOfStock(ctx context.Context) ([]*domain.Product, error) {
	query := "SELECT " + productColumns + productJoin + `
		WHERE p.active = TRUE AND p.stock = 0
		ORDER BY p.updated_at DESC
	`
	return r.queryProducts(ctx, query)
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

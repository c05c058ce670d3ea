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
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryNameTaken   = errors.New("category with this name already exists")
	ErrCategoryHasProducts = errors.New("category still has active products")
)

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, name, description string) (*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	FindByName(ctx context.Context, name string) (*domain.Category, error)
	FindAll(ctx context.Context, includeCount bool) ([]*domain.Category, error)
	Update(ctx context.Context, category *domain.Category, fields map[string]interface{}) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID, lowStockThreshold int) (*domain.CategoryStats, error)
	CanDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// countColumn computes the live active-product count; it is never stored.
const categoryWithCount = `
	SELECT c.id, c.name, c.description, c.active, c.created_at,
	       COUNT(p.id) FILTER (WHERE p.active = TRUE) AS product_count
	FROM categories c
	LEFT JOIN products p ON p.category_id = c.id
`

func scanCategoryWithCount(row rowScanner) (*domain.Category, error) {
	category := &domain.Category{}
	var count int
	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.Active,
		&category.CreatedAt,
		&count,
	)
	if err != nil {
		return nil, err
	}
	category.ProductCount = &count
	return category, nil
}

// Create inserts a new category using parameterized queries.
func (r *categoryRepository) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Active:      true,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO categories (id, name, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		category.ID,
		category.Name,
		category.Description,
		category.Active,
		category.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "categories_name_key") {
			return nil, ErrCategoryNameTaken
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

// FindByID retrieves a category by ID with its live product count.
func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	query := categoryWithCount + " WHERE c.id = $1 GROUP BY c.id"

	category, err := scanCategoryWithCount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}

// FindByName retrieves a category by its unique name with its product count.
func (r *categoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	query := categoryWithCount + " WHERE c.name = $1 GROUP BY c.id"

	category, err := scanCategoryWithCount(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by name: %w", err)
	}

	return category, nil
}

// FindAll retrieves active categories, optionally with product counts.
func (r *categoryRepository) FindAll(ctx context.Context, includeCount bool) ([]*domain.Category, error) {
	var query string
	if includeCount {
		query = categoryWithCount + " WHERE c.active = TRUE GROUP BY c.id ORDER BY c.name ASC"
	} else {
		query = `
			SELECT id, name, description, active, created_at
			FROM categories
			WHERE active = TRUE
			ORDER BY name ASC
		`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		var category *domain.Category
		if includeCount {
			category, err = scanCategoryWithCount(rows)
		} else {
			category = &domain.Category{}
			err = rows.Scan(
				&category.ID,
				&category.Name,
				&category.Description,
				&category.Active,
				&category.CreatedAt,
			)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// Allow-listed columns for Update; only name and description may change.
var updatableCategoryColumns = map[string]bool{
	"name":        true,
	"description": true,
}

// Update changes name and/or description and refreshes the in-memory record.
func (r *categoryRepository) Update(ctx context.Context, category *domain.Category, fields map[string]interface{}) error {
	setClauses := []string{}
	args := []interface{}{category.ID}
	argIndex := 2

	for column, value := range fields {
		if !updatableCategoryColumns[column] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if len(setClauses) == 0 {
		return ErrNoValidFields
	}

	query := fmt.Sprintf("UPDATE categories SET %s WHERE id = $1", strings.Join(setClauses, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "categories_name_key") {
			return ErrCategoryNameTaken
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}

	refreshed, err := r.FindByID(ctx, category.ID)
	if err != nil {
		return err
	}
	*category = *refreshed

	return nil
}

// activeProductCount returns the number of active products in the category.
func (r *categoryRepository) activeProductCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM products WHERE category_id = $1 AND active = TRUE`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count category products: %w", err)
	}
	return count, nil
}

// Deactivate soft-deletes a category unless it still has active products. The
// count check and the flag flip are two separate statements with no
// surrounding transaction; a concurrent product insert can slip between them.
func (r *categoryRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	count, err := r.activeProductCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryHasProducts
	}
	return r.setActive(ctx, id, false)
}

// Activate restores a soft-deleted category. Idempotent.
func (r *categoryRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, true)
}

func (r *categoryRepository) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE categories SET active = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set category active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Stats aggregates catalog figures for the category.
func (r *categoryRepository) Stats(ctx context.Context, id uuid.UUID, lowStockThreshold int) (*domain.CategoryStats, error) {
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(stock), 0),
		       COALESCE(AVG(price), 0),
		       COALESCE(MIN(price), 0),
		       COALESCE(MAX(price), 0),
		       COUNT(*) FILTER (WHERE stock = 0),
		       COUNT(*) FILTER (WHERE stock BETWEEN 1 AND $2)
		FROM products
		WHERE category_id = $1 AND active = TRUE
	`

	stats := &domain.CategoryStats{}
	err := r.db.QueryRowContext(ctx, query, id, lowStockThreshold).Scan(
		&stats.TotalProducts,
		&stats.TotalStock,
		&stats.AvgPrice,
		&stats.MinPrice,
		&stats.MaxPrice,
		&stats.OutOfStock,
		&stats.LowStock,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute category stats: %w", err)
	}

	return stats, nil
}

// CanDelete reports whether the category can be deactivated, wrapping the same
// product-count check Deactivate uses.
func (r *categoryRepository) CanDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := r.activeProductCount(ctx, id)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

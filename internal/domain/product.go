package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents an auto part in the catalog. Optional attributes are
// pointers so the repository can persist an explicit NULL instead of a zero
// value.
type Product struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Name         string     `json:"nombre" db:"name"`
	Description  string     `json:"descripcion" db:"description"`
	Price        float64    `json:"precio" db:"price"`
	Stock        int        `json:"stock" db:"stock"`
	ImageURL     *string    `json:"imagen,omitempty" db:"image_url"`
	CategoryID   *uuid.UUID `json:"categoria_id,omitempty" db:"category_id"`
	CategoryName *string    `json:"categoria_nombre,omitempty" db:"category_name"`
	Code         *string    `json:"codigo_producto,omitempty" db:"code"`
	Brand        *string    `json:"marca,omitempty" db:"brand"`
	Model        *string    `json:"modelo,omitempty" db:"model"`
	YearFrom     *int       `json:"año_desde,omitempty" db:"year_from"`
	YearTo       *int       `json:"año_hasta,omitempty" db:"year_to"`
	Active       bool       `json:"activo" db:"active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Category represents a product category. ProductCount is a live join
// aggregate, never stored.
type Category struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"nombre" db:"name"`
	Description  string    `json:"descripcion" db:"description"`
	Active       bool      `json:"activo" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	ProductCount *int      `json:"product_count,omitempty" db:"-"`
}

// CategoryStats aggregates catalog figures for a single category.
type CategoryStats struct {
	TotalProducts int     `json:"total_products"`
	TotalStock    int     `json:"total_stock"`
	AvgPrice      float64 `json:"avg_price"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	OutOfStock    int     `json:"out_of_stock"`
	LowStock      int     `json:"low_stock"`
}

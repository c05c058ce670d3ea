package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"repuestera/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC(12, 2) NOT NULL CHECK (price > 0),
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
			image_url VARCHAR(500),
			category_id UUID REFERENCES categories(id) ON DELETE SET NULL,
			code VARCHAR(100) UNIQUE,
			brand VARCHAR(100),
			model VARCHAR(100),
			year_from INTEGER,
			year_to INTEGER,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func mustCreateCategory(t *testing.T) *uuid.UUID {
	t.Helper()
	repo := NewCategoryRepository(testDB)
	category, err := repo.Create(context.Background(), "Categoría "+uuid.New().String(), "")
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	return &category.ID
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	repo := NewProductRepository(testDB)
	categoryID := mustCreateCategory(t)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, price float64, stock int, brand string, yearFrom int, span int) bool {
			code := "COD-" + uuid.New().String()
			yearTo := yearFrom + span

			created, err := repo.Create(ctx, CreateProductInput{
				Name:       name,
				Price:      price,
				Stock:      stock,
				CategoryID: categoryID,
				Code:       &code,
				Brand:      &brand,
				YearFrom:   &yearFrom,
				YearTo:     &yearTo,
			})
			if err != nil {
				t.Logf("FAIL: create: %v", err)
				return false
			}

			retrieved, err := repo.FindByID(ctx, created.ID)
			if err != nil {
				t.Logf("FAIL: retrieve: %v", err)
				return false
			}

			if retrieved.Name != name || retrieved.Stock != stock {
				return false
			}
			if retrieved.Price < price-0.01 || retrieved.Price > price+0.01 {
				return false
			}
			if retrieved.CategoryID == nil || *retrieved.CategoryID != *categoryID {
				return false
			}
			if retrieved.Code == nil || *retrieved.Code != code {
				return false
			}
			if retrieved.Brand == nil || *retrieved.Brand != brand {
				return false
			}
			if retrieved.YearFrom == nil || *retrieved.YearFrom != yearFrom {
				return false
			}
			if retrieved.YearTo == nil || *retrieved.YearTo != yearTo {
				return false
			}
			if !retrieved.Active {
				t.Logf("FAIL: new products must start active")
				return false
			}
			if retrieved.CategoryName == nil {
				t.Logf("FAIL: category name not joined in")
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z ]{3,40}`),
		gen.Float64Range(0.01, 999999),
		gen.IntRange(0, 10000),
		gen.RegexMatch(`[A-Za-z]{2,20}`),
		gen.IntRange(1950, 2020),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCreateProduct_InvalidYearRange(t *testing.T) {
	repo := NewProductRepository(testDB)

	_, err := repo.Create(context.Background(), CreateProductInput{
		Name:     "Amortiguador trasero",
		Price:    120.50,
		YearFrom: intPtr(2015),
		YearTo:   intPtr(2010),
	})
	if !errors.Is(err, ErrInvalidYearRange) {
		t.Fatalf("expected ErrInvalidYearRange, got %v", err)
	}
}

func TestCreateProduct_DuplicateCode(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	code := "DUP-" + uuid.New().String()

	if _, err := repo.Create(ctx, CreateProductInput{
		Name:  "Filtro de aire",
		Price: 30,
		Code:  &code,
	}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := repo.Create(ctx, CreateProductInput{
		Name:  "Filtro de aire alternativo",
		Price: 28,
		Code:  &code,
	})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestCreateProduct_InvalidCategory(t *testing.T) {
	repo := NewProductRepository(testDB)
	bogus := uuid.New()

	_, err := repo.Create(context.Background(), CreateProductInput{
		Name:       "Pastillas de freno",
		Price:      55,
		CategoryID: &bogus,
	})
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestFindByCode(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	code := "FBC-" + uuid.New().String()

	created, err := repo.Create(ctx, CreateProductInput{
		Name:  "Correa de distribución",
		Price: 80,
		Code:  &code,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, err := repo.FindByCode(ctx, code)
	if err != nil {
		t.Fatalf("find by code failed: %v", err)
	}
	if found.ID != created.ID {
		t.Error("found a different product")
	}

	if _, err := repo.FindByCode(ctx, "no-such-code"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProperty_ListingAndCountAgree(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	properties := gopter.NewProperties(params)

	properties.Property("FindAll pagination is consistent with Count", prop.ForAll(
		func(total int, limit int, offset int) bool {
			categoryID := mustCreateCategory(t)

			for i := 0; i < total; i++ {
				if _, err := repo.Create(ctx, CreateProductInput{
					Name:       "Repuesto",
					Price:      10,
					Stock:      i,
					CategoryID: categoryID,
				}); err != nil {
					t.Logf("FAIL: create: %v", err)
					return false
				}
			}

			filter := ProductFilter{CategoryID: categoryID, Limit: limit, Offset: offset}

			count, err := repo.Count(ctx, filter)
			if err != nil {
				t.Logf("FAIL: count: %v", err)
				return false
			}
			if count != total {
				t.Logf("FAIL: count %d, expected %d", count, total)
				return false
			}

			page, err := repo.FindAll(ctx, filter)
			if err != nil {
				t.Logf("FAIL: find all: %v", err)
				return false
			}

			expected := total - offset
			if expected < 0 {
				expected = 0
			}
			if expected > limit {
				expected = limit
			}

			return len(page) == expected
		},
		gen.IntRange(0, 12),
		gen.IntRange(1, 5),
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFindAll_SearchAndPriceFilters(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	categoryID := mustCreateCategory(t)

	needle := "Zuncho" + uuid.New().String()[:8]
	if _, err := repo.Create(ctx, CreateProductInput{
		Name:       needle + " reforzado",
		Price:      100,
		Stock:      3,
		CategoryID: categoryID,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.Create(ctx, CreateProductInput{
		Name:       "Otro repuesto",
		Price:      500,
		Stock:      0,
		CategoryID: categoryID,
		Brand:      strPtr(needle),
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Search matches name and brand alike
	results, err := repo.FindAll(ctx, ProductFilter{CategoryID: categoryID, Search: needle, Limit: 10})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 search hits, got %d", len(results))
	}

	// Price ceiling excludes the expensive one
	maxPrice := 200.0
	results, err = repo.FindAll(ctx, ProductFilter{CategoryID: categoryID, MaxPrice: &maxPrice, Limit: 10})
	if err != nil {
		t.Fatalf("price filter failed: %v", err)
	}
	if len(results) != 1 || results[0].Price != 100 {
		t.Fatalf("expected only the cheap product, got %d results", len(results))
	}

	// in_stock=true drops the zero-stock product
	inStock := true
	results, err = repo.FindAll(ctx, ProductFilter{CategoryID: categoryID, InStock: &inStock, Limit: 10})
	if err != nil {
		t.Fatalf("stock filter failed: %v", err)
	}
	if len(results) != 1 || results[0].Stock == 0 {
		t.Fatalf("expected only the stocked product, got %d results", len(results))
	}
}

func TestFindAll_UnknownSortFallsBack(t *testing.T) {
	repo := NewProductRepository(testDB)
	categoryID := mustCreateCategory(t)

	_, err := repo.FindAll(context.Background(), ProductFilter{
		CategoryID: categoryID,
		SortBy:     "password_hash; DROP TABLE products",
		SortOrder:  SortOrder("sideways"),
		Limit:      5,
	})
	if err != nil {
		t.Fatalf("unknown sort column must fall back, not fail: %v", err)
	}
}

func TestStockMutations(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	product, err := repo.Create(ctx, CreateProductInput{
		Name:  "Bomba de agua",
		Price: 75,
		Stock: 10,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.UpdateStock(ctx, product, -1); !errors.Is(err, ErrNegativeStock) {
		t.Fatalf("expected ErrNegativeStock, got %v", err)
	}

	if err := repo.ReduceStock(ctx, product, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	if err := repo.ReduceStock(ctx, product, 11); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// A rejected mutation leaves the stored value untouched
	stored, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.Stock != 10 {
		t.Fatalf("stock changed after rejected mutations: %d", stored.Stock)
	}

	if err := repo.ReduceStock(ctx, product, 4); err != nil {
		t.Fatalf("reduce failed: %v", err)
	}
	if product.Stock != 6 {
		t.Fatalf("in-memory stock not refreshed: %d", product.Stock)
	}

	if err := repo.IncreaseStock(ctx, product, 14); err != nil {
		t.Fatalf("increase failed: %v", err)
	}
	if product.Stock != 20 {
		t.Fatalf("in-memory stock not refreshed: %d", product.Stock)
	}

	stored, err = repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.Stock != 20 {
		t.Fatalf("stored stock %d, expected 20", stored.Stock)
	}

	if err := repo.UpdateStock(ctx, product, 0); err != nil {
		t.Fatalf("set to zero failed: %v", err)
	}
}

func TestUpdateProduct(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	product, err := repo.Create(ctx, CreateProductInput{
		Name:  "Radiador",
		Price: 200,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = repo.Update(ctx, product, map[string]interface{}{
		"name":  "Radiador de aluminio",
		"price": 250.0,
		"stock": 99, // not allow-listed; must be ignored
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if product.Name != "Radiador de aluminio" || product.Price != 250 {
		t.Errorf("in-memory record not refreshed: %+v", product)
	}
	if product.Stock != 0 {
		t.Errorf("stock must not change through Update, got %d", product.Stock)
	}

	if err := repo.Update(ctx, product, map[string]interface{}{"stock": 5}); !errors.Is(err, ErrNoValidFields) {
		t.Fatalf("expected ErrNoValidFields, got %v", err)
	}
}

func TestUpdateProduct_DuplicateCode(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	code := "UPD-" + uuid.New().String()

	if _, err := repo.Create(ctx, CreateProductInput{Name: "Primero", Price: 10, Code: &code}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := repo.Create(ctx, CreateProductInput{Name: "Segundo", Price: 10})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = repo.Update(ctx, second, map[string]interface{}{"code": code})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestDeactivateProduct(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	categoryID := mustCreateCategory(t)

	product, err := repo.Create(ctx, CreateProductInput{
		Name:       "Embrague",
		Price:      300,
		Stock:      2,
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Deactivate(ctx, product.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	// Hidden from listings, still directly addressable
	count, err := repo.Count(ctx, ProductFilter{CategoryID: categoryID})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("deactivated product still listed, count %d", count)
	}

	stored, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.Active {
		t.Error("product should be inactive")
	}

	// Idempotent both ways
	if err := repo.Deactivate(ctx, product.ID); err != nil {
		t.Fatalf("second deactivate failed: %v", err)
	}
	if err := repo.Activate(ctx, product.ID); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	count, err = repo.Count(ctx, ProductFilter{CategoryID: categoryID})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("reactivated product missing from listing, count %d", count)
	}

	if err := repo.Deactivate(ctx, uuid.New()); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStockReports(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	low, err := repo.Create(ctx, CreateProductInput{Name: "Termostato", Price: 20, Stock: 2})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	out, err := repo.Create(ctx, CreateProductInput{Name: "Alternador", Price: 400, Stock: 0})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	high, err := repo.Create(ctx, CreateProductInput{Name: "Fusible", Price: 1, Stock: 500})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	lowStock, err := repo.LowStock(ctx, 5)
	if err != nil {
		t.Fatalf("low stock report failed: %v", err)
	}
	if !containsProduct(lowStock, low.ID) {
		t.Error("low-stock product missing from report")
	}
	if containsProduct(lowStock, out.ID) {
		t.Error("zero-stock product must not appear in the low-stock report")
	}
	if containsProduct(lowStock, high.ID) {
		t.Error("well-stocked product must not appear in the low-stock report")
	}

	outOfStock, err := repo.OutOfStock(ctx)
	if err != nil {
		t.Fatalf("out of stock report failed: %v", err)
	}
	if !containsProduct(outOfStock, out.ID) {
		t.Error("zero-stock product missing from report")
	}
	if containsProduct(outOfStock, low.ID) {
		t.Error("stocked product must not appear in the out-of-stock report")
	}
}

func containsProduct(products []*domain.Product, id uuid.UUID) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}

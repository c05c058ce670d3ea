package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"repuestera/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service wraps the lazily-initialized connection pool. The pool is created on
// first use and shared for the process lifetime; database/sql handles
// re-establishing lost connections underneath it.
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	TablesPresent(ctx context.Context, tables []string) map[string]bool
	Transaction(ctx context.Context, statements []Statement) error
	Close() error
}

// Statement is one parameterized statement inside an ordered transaction.
type Statement struct {
	Query string
	Args  []interface{}
}

type service struct {
	cfg *config.DatabaseConfig

	once sync.Once
	db   *sql.DB
	err  error
}

// New creates a database service bound to the given configuration. No
// connection is opened until DB is first called.
func New(cfg *config.DatabaseConfig) Service {
	return &service{cfg: cfg}
}

func (s *service) DB() *sql.DB {
	s.once.Do(func() {
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
			s.cfg.User, s.cfg.Password, s.cfg.Host, s.cfg.Port, s.cfg.Database, s.cfg.Schema,
		)
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			s.err = err
			return
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		s.db = db
	})
	return s.db
}

// Health reports connectivity and pool statistics.
func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	db := s.DB()
	if db == nil {
		stats["status"] = "down"
		if s.err != nil {
			stats["error"] = s.err.Error()
		}
		return stats
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	poolStats := db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = strconv.Itoa(poolStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(poolStats.InUse)
	stats["idle"] = strconv.Itoa(poolStats.Idle)
	return stats
}

// TablesPresent checks which of the expected tables exist in the configured
// schema. Used by the health endpoint; informational only.
func (s *service) TablesPresent(ctx context.Context, tables []string) map[string]bool {
	present := make(map[string]bool, len(tables))

	db := s.DB()
	if db == nil {
		for _, t := range tables {
			present[t] = false
		}
		return present
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`
	for _, t := range tables {
		var exists bool
		if err := db.QueryRowContext(ctx, query, s.cfg.Schema, t).Scan(&exists); err != nil {
			present[t] = false
			continue
		}
		present[t] = exists
	}
	return present
}

// Transaction executes an ordered list of statements atomically, committing
// all of them or rolling all of them back.
func (s *service) Transaction(ctx context.Context, statements []Statement) error {
	db := s.DB()
	if db == nil {
		return fmt.Errorf("database unavailable: %w", s.err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("statement failed: %v (rollback failed: %w)", err, rbErr)
			}
			return fmt.Errorf("statement failed, transaction rolled back: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

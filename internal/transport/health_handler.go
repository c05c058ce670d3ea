package transport

import (
	"net/http"
	"time"

	"repuestera/internal/database"
	"repuestera/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// expectedTables lists the tables the application schema requires.
var expectedTables = []string{"customers", "administrators", "categories", "products"}

// HealthHandler reports process and database status. Informational only, not
// a stable contract.
type HealthHandler struct {
	db        database.Service
	startedAt time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db database.Service) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health reports process uptime, database connectivity, and expected-table
// presence.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbHealth := h.db.Health()
	tables := h.db.TablesPresent(r.Context(), expectedTables)

	status := "ok"
	code := http.StatusOK
	if dbHealth["status"] != "up" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		for _, present := range tables {
			if !present {
				status = "degraded"
				break
			}
		}
	}

	middleware.RespondWithJSON(w, code, map[string]interface{}{
		"status":   status,
		"uptime":   time.Since(h.startedAt).String(),
		"database": dbHealth,
		"tables":   tables,
	})
}

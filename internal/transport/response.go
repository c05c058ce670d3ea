package transport

import (
	"net/http"
	"strconv"
)

// Pagination is the envelope returned alongside every paginated listing.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages"`
	TotalItems   int  `json:"total_items"`
	ItemsPerPage int  `json:"items_per_page"`
	HasNext      bool `json:"has_next"`
	HasPrev      bool `json:"has_prev"`
}

// NewPagination computes the envelope for a page of a filtered listing.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNext:      page < totalPages,
		HasPrev:      page > 1 && total > 0,
	}
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// parsePageLimit reads page/limit query parameters with defaults and bounds.
func parsePageLimit(r *http.Request) (page, limit int) {
	page = defaultPage
	limit = defaultLimit

	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}
	return page, limit
}

package transport

import (
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_PaginationInvariants(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pagination envelope is internally consistent", prop.ForAll(
		func(page, limit, total int) bool {
			p := NewPagination(page, limit, total)

			if p.TotalItems != total || p.CurrentPage != page || p.ItemsPerPage != limit {
				return false
			}

			// total_pages covers all items without an extra page
			if p.TotalPages*limit < total {
				return false
			}
			if total > 0 && (p.TotalPages-1)*limit >= total {
				return false
			}

			if p.HasNext != (page < p.TotalPages) {
				return false
			}
			if p.HasPrev && page <= 1 {
				return false
			}

			return true
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1, 100),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestParsePageLimit(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "/api/products", 1, 10},
		{"explicit values", "/api/products?page=3&limit=25", 3, 25},
		{"limit capped", "/api/products?limit=5000", 1, 100},
		{"garbage ignored", "/api/products?page=abc&limit=-4", 1, 10},
		{"zero ignored", "/api/products?page=0&limit=0", 1, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			page, limit := parsePageLimit(req)
			if page != tc.wantPage || limit != tc.wantLimit {
				t.Errorf("got page=%d limit=%d, expected page=%d limit=%d", page, limit, tc.wantPage, tc.wantLimit)
			}
		})
	}
}

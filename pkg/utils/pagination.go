package utils

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// GetPaginationDetails reads ?limit= and ?page= and returns limit, offset, page.
func GetPaginationDetails(r *http.Request) (int, int, int) {
	limit := defaultPageSize
	if val, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && val > 0 {
		limit = min(val, maxPageSize)
	}

	page := 1
	if val, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && val > 0 {
		page = val
	}

	return limit, (page - 1) * limit, page
}

// PageMeta is the "meta" block list endpoints return next to their items.
func PageMeta(total int64, limit, page int) map[string]interface{} {
	return map[string]interface{}{
		"total_items":  total,
		"total_pages":  int(math.Ceil(float64(total) / float64(limit))),
		"current_page": page,
		"limit":        limit,
	}
}

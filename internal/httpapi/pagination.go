package httpapi

import (
	"math"
	"strconv"

	"PolicyScanner/internal/infrastructure/storage"
)

const (
	defaultPageSize = 11
	maxPageSize     = 100
	maxPage         = 1_000_000
)

// Pagination is a parsed page request.
type Pagination struct {
	Page  int
	Limit int
}

// ParsePagination reads zero-based page and pageSize query values.
// Missing or invalid values fall back to page 0 and the default size.
// Size is capped at 100 and page at one million.
func ParsePagination(pageRaw, sizeRaw string) Pagination {
	page, err := strconv.Atoi(pageRaw)
	if err != nil || page < 0 {
		page = 0
	}

	size, err := strconv.Atoi(sizeRaw)
	if err != nil || size < 1 {
		size = defaultPageSize
	}

	return Pagination{Page: min(page, maxPage), Limit: min(size, maxPageSize)}
}

// Window converts the request into a storage limit/offset.
func (p Pagination) Window() storage.Page {
	return storage.Page{Limit: uint64(p.Limit), Offset: uint64(p.Page) * uint64(p.Limit)}
}

// TotalPages is ceil(total/limit).
func (p Pagination) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(p.Limit)))
}

// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows shown in paged lists.
// Keep this as an int because most call sites add/subtract and then
// cast to int64 for Mongo Find().SetLimit().
const PageSize = 50

// ParsePage extracts the 1-based "page" query parameter.
// Returns 1 if not present or invalid.
func ParsePage(r *http.Request) int {
	n, err := strconv.Atoi(query.Get(r, "page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Offset is the number of rows before page.
func Offset(page int) int64 {
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * PageSize)
}

// Page describes one page of a list with a known total.
type Page struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	Total      int64 `json:"total"`
	RangeStart int   `json:"range_start"`
	RangeEnd   int   `json:"range_end"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// Compute returns the Page for page when shown rows of total are displayed.
func Compute(page int, shown int, total int64) Page {
	if page < 1 {
		page = 1
	}
	p := Page{Page: page, Total: total}
	p.TotalPages = int((total + PageSize - 1) / PageSize)
	if shown > 0 {
		p.RangeStart = int(Offset(page)) + 1
		p.RangeEnd = p.RangeStart + shown - 1
	}
	p.HasPrev = page > 1
	p.HasNext = page < p.TotalPages
	return p
}

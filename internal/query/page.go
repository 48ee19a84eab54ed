package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page is a 1-based page request.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination is the block returned next to a page of rows.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ParsePage reads page and limit from query values. Malformed or out of
// range values fall back to the defaults instead of failing the request.
func ParsePage(v url.Values) Page {
	return NewPage(atoiOr(v.Get("page"), 1), atoiOr(v.Get("limit"), DefaultLimit))
}

// NewPage normalises page and limit.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	// the offset must stay representable
	if page-1 > math.MaxInt/limit {
		page = 1
	}
	return Page{Page: page, Limit: limit}
}

// Offset is the number of rows skipped before the page. It is never negative.
func (p Page) Offset() int {
	if p.Page < 1 || p.Limit < 1 || p.Page-1 > math.MaxInt/p.Limit {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Result builds the pagination block for total matching rows.
func (p Page) Result(total int) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: Pages(total, p.Limit)}
}

// Pages returns ceil(total/limit); zero when there is nothing to page.
func Pages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Window returns the [start, end) slice bounds of the page over n rows.
func (p Page) Window(n int) (int, int) {
	start := p.Offset()
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

func atoiOr(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Normalize clamps page and perPage to valid values.
func Normalize(page, perPage int) Params {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > maxPerPage {
		perPage = defaultPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// FromRequest reads ?page= and ?per_page=, ignoring invalid values.
func FromRequest(r *http.Request) Params {
	p := Params{Page: 1, PerPage: defaultPerPage}
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= maxPerPage {
		p.PerPage = v
	}
	return p
}

// Result wraps one page of results.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewResult builds a Result. A nil data slice is rendered as [].
func NewResult[T any](data []T, totalCount int, p Params) Result[T] {
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	totalPages := (totalCount + p.PerPage - 1) / p.PerPage
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
	}
}

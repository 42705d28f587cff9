// Package pagination normalises 1-indexed page requests.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Params struct {
	Page     int
	PageSize int
}

// New normalises page and size: page < 1 becomes 1, size <= 0 becomes
// DefaultPageSize, size above MaxPageSize is clamped.
func New(page, size int) Params {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Params{Page: page, PageSize: size}
}

// FromContext reads ?page= and ?page_size=. Unparseable values fall back to defaults.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return New(page, size)
}

func (p Params) Limit() int { return p.PageSize }

func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

type Response[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	HasMore    bool `json:"has_more"`
}

// NewResponse never returns a nil Items slice so that an empty page encodes as [].
func NewResponse[T any](items []T, total int, p Params) *Response[T] {
	if items == nil {
		items = []T{}
	}
	return &Response[T]{
		Items:      items,
		TotalCount: total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		HasMore:    p.Offset()+len(items) < total,
	}
}

// Package pagination handles page/page_size query parameters for list endpoints.
package pagination

import (
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in missing values and caps the page size.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Meta is returned next to a page of items in the response envelope.
type Meta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Page is one page of items plus its metadata.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// NewPage builds a Page for req from the rows of the current page and the total row count.
func NewPage[T any](items []T, req PageRequest, totalItems int64) *Page[T] {
	req.Defaults()
	if items == nil {
		items = []T{}
	}
	totalPages := int((totalItems + int64(req.PageSize) - 1) / int64(req.PageSize))
	return &Page[T]{
		Items: items,
		Meta: Meta{
			Page:       req.Page,
			PageSize:   req.PageSize,
			TotalItems: totalItems,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
		},
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	req.Defaults()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

package repository

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// PageQuery describes one paginated read.
type PageQuery struct {
	Page     int
	PerPage  int
	Sort     []SortField
	Filter   Filter
	ViewMode models.ViewMode
	// Scopes narrow both the count and the fetch.
	Scopes []Scope
	// Preload runs on the fetch only.
	Preload Scope
}

// Normalize clamps page and per-page into range and defaults the view mode.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if q.ViewMode == "" {
		q.ViewMode = models.ViewActive
	}
	return q
}

// Offset is the number of rows skipped before the page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Page is one page of results.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewPage builds an empty page with total_pages computed from total.
func NewPage[T any](total int64, page, perPage int) *Page[T] {
	return &Page[T]{
		Items:      []T{},
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: TotalPages(total, perPage),
	}
}

// TotalPages is ceil(total/perPage), and 0 when total is 0.
func TotalPages(total int64, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

// Page sizing used when a caller supplies nothing usable.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageMeta describes one page of a listing. It is rendered as the "meta"
// member of list responses.
type PageMeta struct {
	Page       int   `json:"page" example:"1"`
	PageSize   int   `json:"page_size" example:"20"`
	Total      int64 `json:"total" example:"42"`
	TotalPages int   `json:"total_pages" example:"3"`
}

// Normalize clamps page and size into their valid ranges.
//
// Example:
//
//	p, s := utils.Normalize(0, 500) // returns 1, 100
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}

// Offset returns the number of rows preceding page.
func Offset(page, size int) int {
	page, size = Normalize(page, size)
	return (page - 1) * size
}

// NewPageMeta builds the meta block for a page of total items.
func NewPageMeta(page, size int, total int64) PageMeta {
	page, size = Normalize(page, size)
	pages := int((total + int64(size) - 1) / int64(size))
	return PageMeta{Page: page, PageSize: size, Total: total, TotalPages: pages}
}

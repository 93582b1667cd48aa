package models

// Pagination bounds for the admin listing.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// PageFilter carries the paging, ordering and filtering parameters of the
// admin user listing. The zero value is usable; Normalized fills in defaults.
type PageFilter struct {
	Page      int
	Size      int
	OrderBy   string
	Direction string // "asc" or "desc"
	Email     string // optional equality filter
}

// Normalized returns a copy with defaults applied and bounds enforced.
func (f PageFilter) Normalized() PageFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 {
		f.Size = DefaultPageSize
	}
	if f.Size > MaxPageSize {
		f.Size = MaxPageSize
	}
	if f.OrderBy == "" {
		f.OrderBy = "id"
	}
	if f.Direction != "asc" {
		f.Direction = "desc"
	}
	return f
}

// Offset returns the row offset of the page.
func (f PageFilter) Offset() int {
	return (f.Page - 1) * f.Size
}

// Page is one page of a listing plus its pagination envelope.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Pages int   `json:"pages"`
}

// NewPage assembles a Page from the items, the total row count and the
// normalized filter that produced them.
func NewPage[T any](items []T, total int64, f PageFilter) *Page[T] {
	pages := 0
	if f.Size > 0 {
		pages = int((total + int64(f.Size) - 1) / int64(f.Size))
	}
	return &Page[T]{Items: items, Total: total, Page: f.Page, Size: f.Size, Pages: pages}
}

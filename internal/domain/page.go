package domain

// PaginationParams carries page/limit values from the HTTP layer to the repo layer.
// Page is 1-indexed. Limit is capped at MaxPageLimit by NewPaginationParams.
type PaginationParams struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NewPaginationParams builds a PaginationParams from optional query params.
// Nil or non-positive values fall back to page=1, limit=DefaultPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata block returned alongside every list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

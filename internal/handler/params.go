package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// pageResponse is the envelope of every list endpoint.
type pageResponse[T any] struct {
	Data       []T               `json:"data"`
	Pagination domain.Pagination `json:"pagination"`
}

func writePage[T any](w http.ResponseWriter, data []T, total int64, p domain.PaginationParams) {
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, pageResponse[T]{
		Data:       data,
		Pagination: domain.Pagination{Page: p.Page, Limit: p.Limit, Total: total},
	})
}

// pathUUID binds the chi URL parameter name as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s: must be a UUID", domain.ErrValidation, name)
	}
	return id, nil
}

// pagination reads the optional ?page= and ?limit= query parameters.
func pagination(r *http.Request) (domain.PaginationParams, error) {
	var page, limit *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &page); err != nil {
		return domain.PaginationParams{}, fmt.Errorf("%w: page must be an integer", domain.ErrValidation)
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		return domain.PaginationParams{}, fmt.Errorf("%w: limit must be an integer", domain.ErrValidation)
	}
	return domain.NewPaginationParams(page, limit), nil
}

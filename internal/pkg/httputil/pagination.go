package httputil

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Pagination defaults shared by every list endpoint.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrInvalidPagination is returned for non-numeric or out of range page/limit.
var ErrInvalidPagination = errors.New("invalid pagination parameters")

// Page is a validated page/limit pair.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePage reads page and limit query parameters.
func ParsePage(r *http.Request) (Page, error) {
	p := Page{Page: DefaultPage, Limit: DefaultLimit}

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Page{}, ErrInvalidPagination
		}
		p.Page = n
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return Page{}, ErrInvalidPagination
		}
		p.Limit = n
	}

	return p, nil
}

// PageMeta describes a page of a list response.
type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// Paginated writes {"data": items, "meta": {...}}.
func Paginated(w http.ResponseWriter, items interface{}, total int, p Page) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"data": items,
		"meta": PageMeta{
			Total: total,
			Page:  p.Page,
			Limit: p.Limit,
			Pages: int(math.Ceil(float64(total) / float64(p.Limit))),
		},
	})
}

// ParseTimeParam parses an optional RFC 3339 query parameter.
func ParseTimeParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.New(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}

// IsUUID reports whether s is a well-formed UUID.
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}

// PathID returns the named chi URL parameter if it is a well-formed UUID.
// Malformed ids are reported as absent so handlers answer 404.
func PathID(r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if !IsUUID(id) {
		return "", false
	}
	return id, true
}

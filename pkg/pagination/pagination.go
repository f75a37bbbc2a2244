// Package pagination parses page/per_page query parameters the same way for
// every list endpoint. Response shaping lives in httputil.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params is the validated paging window for one request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams is the first page with the standard page size.
func DefaultParams() Params {
	return Params{Page: defaultPage, PerPage: defaultPerPage}
}

// FromRequest reads page and per_page from the query string. Values that are
// missing, unparseable, non-positive, or over the per-page cap fall back to
// the defaults rather than erroring, so a sloppy console URL still renders.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= maxPerPage {
		p.PerPage = v
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// Package pagination implements page-number pagination with a fixed page size.
package pagination

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultPageSize is the number of records returned per page.
const DefaultPageSize = 10

// Params is a page-number cursor. Page is 1-based.
type Params struct {
	Page int
	Size int
}

// FromQuery reads ?page=N. Missing, malformed or non-positive values mean page 1.
func FromQuery(q url.Values) Params {
	p := Params{Page: 1, Size: DefaultPageSize}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	return p.Normalize()
}

// Normalize fills zero values with defaults and caps Page so the offset
// cannot overflow.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if maxPage := math.MaxInt/p.Size + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func (p Params) Limit() int { return p.Normalize().Size }

func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Size
}

// Page is one page of results plus the totals callers need to navigate.
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

// New builds a Page; Data is never nil so it always encodes as an array.
func New[T any](data []T, p Params, total int) Page[T] {
	p = p.Normalize()
	if data == nil {
		data = []T{}
	}
	last := (total + p.Size - 1) / p.Size
	if last < 1 {
		last = 1
	}
	return Page[T]{Data: data, CurrentPage: p.Page, PerPage: p.Size, LastPage: last, Total: total}
}

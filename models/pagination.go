package models

import (
	"net/url"
	"strconv"
)

// PaginatedResult pairs one server-scoped page of items with the page
// count derived from the server-reported total. The zero value is an
// empty result with zero pages.
type PaginatedResult[T any] struct {
	items     []T
	total     int
	pageCount int
}

// FromServerPage wraps a page the server already scoped for us.
// totalCount is the server-reported number of matching items across all
// pages. perPage must be positive; anything else is a programming error.
func FromServerPage[T any](totalCount, perPage int, items []T) PaginatedResult[T] {
	if perPage <= 0 {
		panic("models: results per page must be positive")
	}
	if totalCount < 0 {
		totalCount = 0
	}
	cp := make([]T, len(items))
	copy(cp, items)
	return PaginatedResult[T]{
		items:     cp,
		total:     totalCount,
		pageCount: (totalCount + perPage - 1) / perPage,
	}
}

func (p PaginatedResult[T]) Items() []T      { return p.items }
func (p PaginatedResult[T]) TotalCount() int { return p.total }
func (p PaginatedResult[T]) PageCount() int  { return p.pageCount }

// PageQuery builds the limit/offset query parameters for the given
// 1-based page number.
func PageQuery(page, perPage int) url.Values {
	if page < 1 {
		page = 1
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(perPage))
	v.Set("offset", strconv.Itoa((page-1)*perPage))
	return v
}

// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// Page describes one page of a list response.
type Page struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// PageBounds are the defaults and cap applied by ClampPage.
type PageBounds struct {
	DefaultSize int
	MaxSize     int
}

// DefaultPageBounds serve timeline listings.
var DefaultPageBounds = PageBounds{DefaultSize: 20, MaxSize: 100}

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage parses raw page and page size query values. Pages start at 1,
// sizes are kept within [1, b.MaxSize]; unparsable values take the defaults.
func ClampPage(rawPage, rawSize string, b PageBounds) (page, size int) {
	page = AtoiDefault(rawPage, 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(rawSize, b.DefaultSize)
	if size < 1 {
		size = 1
	}
	if b.MaxSize > 0 && size > b.MaxSize {
		size = b.MaxSize
	}
	return page, size
}

// NewPage computes the metadata for page of size out of total rows.
func NewPage(page, size int, total int64) Page {
	if size < 1 {
		size = 1
	}
	totalPages := int((total + int64(size) - 1) / int64(size))
	return Page{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

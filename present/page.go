// Package present turns recommendation results into paged, display-ready
// views and keeps per-session state.
package present

import "fmt"

// DefaultPageSize is the number of cards shown per page.
const DefaultPageSize = 9

// Page is one window over a result list. Start and End are the zero-based,
// half-open bounds of Items within the full list.
type Page[T any] struct {
	Number     int `json:"page"`
	TotalPages int `json:"total_pages"`
	Start      int `json:"start"`
	End        int `json:"end"`
	Total      int `json:"total"`
	Items      []T `json:"items"`
}

// Paginate returns page number page of items. The page is clamped to
// [1, TotalPages] and TotalPages is never below 1.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)

	return Page[T]{
		Number:     page,
		TotalPages: totalPages,
		Start:      start,
		End:        end,
		Total:      total,
		Items:      items[start:end],
	}
}

// HasPrev reports whether an earlier page exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a later page exists.
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }

// Caption describes the window, e.g. "Showing 1–9 of 23 results."
func (p Page[T]) Caption() string {
	if p.Total == 0 {
		return "No results."
	}
	return fmt.Sprintf("Showing %d–%d of %d results.", p.Start+1, p.End, p.Total)
}

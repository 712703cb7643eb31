package store

// PageSize is the fixed number of rows per admin browser page.
const PageSize = 10

// Page is one window into a larger list, with the clamped page index and the
// total page count for rendering navigation.
type Page[T any] struct {
	Items []T
	Index int
	Total int
}

// Paginate slices items into fixed-size pages and returns the requested page.
// Out-of-range indexes clamp to the nearest valid page, and an empty list
// still counts as one (empty) page so callers always render page "1/1".
func Paginate[T any](items []T, index int) Page[T] {
	total := (len(items) + PageSize - 1) / PageSize
	if total < 1 {
		total = 1
	}
	if index < 0 {
		index = 0
	}
	if index >= total {
		index = total - 1
	}
	start := index * PageSize
	end := start + PageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return Page[T]{Items: items[start:end], Index: index, Total: total}
}

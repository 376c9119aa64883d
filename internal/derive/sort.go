package derive

import (
	"slices"
	"strings"
	"time"

	"projectflow/internal/model"
)

// Sort returns a copy of items ordered by key. Ties keep input order.
// An empty or unknown key sorts newest first.
//
// deadline: ascending, records without a deadline last.
// name:     byte-wise lexicographic ascending.
func Sort[T model.Record](items []T, key model.SortKey) []T {
	out := make([]T, len(items))
	copy(out, items)

	switch key.OrDefault() {
	case model.SortOldest:
		slices.SortStableFunc(out, func(a, b T) int {
			return a.Created().Compare(b.Created())
		})
	case model.SortDeadline:
		slices.SortStableFunc(out, func(a, b T) int {
			return compareDeadline(a.Due(), b.Due())
		})
	case model.SortName:
		slices.SortStableFunc(out, func(a, b T) int {
			return strings.Compare(a.Label(), b.Label())
		})
	default:
		slices.SortStableFunc(out, func(a, b T) int {
			return b.Created().Compare(a.Created())
		})
	}
	return out
}

func compareDeadline(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

// Limit truncates items to n entries; n <= 0 means unbounded.
func Limit[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// Package bookinglist maintains the client-side view of a bookings
// collection: a stable status-then-date ordering, pagination over it, and the
// single-row edit flow. After any mutation the re-fetched list is the source
// of truth; nothing here patches local state across a mutation boundary.
package bookinglist

import (
	"sort"

	"github.com/medibook/medibook/internal/platform/restapi"
)

// Reconcile orders bookings for display: cancelled bookings after everything
// else, each partition ascending by slot start, with a missing start sorting
// earliest. The sort is stable, so equal keys keep their fetch order.
func Reconcile(bookings []restapi.Booking) []restapi.Booking {
	out := make([]restapi.Booking, len(bookings))
	copy(out, bookings)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].Cancelled(), out[j].Cancelled()
		if ci != cj {
			return !ci
		}
		return out[i].SlotStart().Before(out[j].SlotStart())
	})
	return out
}

// Paginate slices one page out of an ordered list. totalPages is at least 1
// even for an empty list, and page is clamped into [1, totalPages].
func Paginate(sorted []restapi.Booking, page, pageSize int) (items []restapi.Booking, totalPages int) {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages = (len(sorted) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(sorted) {
		start = len(sorted)
	}
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end], totalPages
}

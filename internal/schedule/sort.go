package schedule

import (
	"cmp"
	"slices"

	"shopcal/internal/model"
)

// ByPriority returns a copy of events ordered high, medium, low, then any
// unrecognized priority. Equal priorities keep their input order.
// This is the ordering for calendar chips.
func ByPriority(events []model.Event) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	})
	return out
}

// Chronological returns a copy of events ordered by Start, ignoring
// priority. This is the ordering for agenda and day-detail lists.
func Chronological(events []model.Event) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// Cap keeps the first limit events of an already sorted list and reports
// how many were cut. A limit <= 0 keeps everything.
func Cap(sorted []model.Event, limit int) (shown []model.Event, overflow int) {
	if limit <= 0 || len(sorted) <= limit {
		return sorted, 0
	}
	return sorted[:limit], len(sorted) - limit
}

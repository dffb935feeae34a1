// Package schedule places, orders and filters events for calendar views.
// Everything here is pure: inputs are never mutated and "now" is always
// passed in by the caller.
package schedule

import (
	"time"

	"shopcal/internal/model"
)

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date, each
// read in its own location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// OccursOn reports whether e belongs in the date cell for day.
//
// Three checks are ORed: the cell's midnight lies within [Start, End], or the
// cell date equals Start's date, or it equals End's date. The endpoint checks
// catch same-day events that start after midnight; the interval check covers
// the middle days of longer spans.
func OccursOn(e model.Event, day time.Time) bool {
	cell := Midnight(day)
	if !cell.Before(e.Start) && !cell.After(e.End) {
		return true
	}
	return SameDate(cell, e.Start) || SameDate(cell, e.End)
}

// ForDate returns the events occurring on day, in input order.
func ForDate(events []model.Event, day time.Time) []model.Event {
	var out []model.Event
	for _, e := range events {
		if OccursOn(e, day) {
			out = append(out, e)
		}
	}
	return out
}

// StartsInHour reports whether e is drawn in the (day, hour) grid slot.
// Only the start slot counts, however long the event runs.
func StartsInHour(e model.Event, day time.Time, hour int) bool {
	return SameDate(e.Start, day) && e.Start.Hour() == hour
}

// ForHour returns the events starting in the (day, hour) slot, in input order.
func ForHour(events []model.Event, day time.Time, hour int) []model.Event {
	var out []model.Event
	for _, e := range events {
		if StartsInHour(e, day, hour) {
			out = append(out, e)
		}
	}
	return out
}

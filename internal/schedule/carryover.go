package schedule

import (
	"time"

	"shopcal/internal/model"
)

// CarryOverPolicy tunes which past events count as overdue.
//
// The zero value counts everything not completed, including cancelled jobs.
// Whether cancelled jobs should really show as overdue is an open business
// decision, so it is left to configuration.
type CarryOverPolicy struct {
	ExcludeCancelled bool `yaml:"exclude_cancelled" json:"exclude_cancelled"`
}

// IsCarryOver reports whether e started on a calendar date strictly before
// today's and is still open under policy. Time of day is ignored.
func IsCarryOver(e model.Event, today time.Time, policy CarryOverPolicy) bool {
	if !Midnight(e.Start).Before(dateIn(today, e.Start.Location())) {
		return false
	}
	switch e.Status {
	case model.StatusCompleted:
		return false
	case model.StatusCancelled:
		return !policy.ExcludeCancelled
	}
	return true
}

// ResolveCarryOver returns the overdue events to attach to today, oldest
// first. It holds no state: call it again with a new today to recompute.
func ResolveCarryOver(events []model.Event, today time.Time, policy CarryOverPolicy) []model.Event {
	var out []model.Event
	for _, e := range events {
		if IsCarryOver(e, today, policy) {
			out = append(out, e)
		}
	}
	return Chronological(out)
}

// dateIn rebuilds t's calendar date as midnight in loc so that two wall-clock
// dates compare by their fields, not by instant.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

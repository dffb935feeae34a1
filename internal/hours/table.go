package hours

import (
	"errors"
	"time"

	appLog "shopcal/internal/log"
	"shopcal/internal/model"
)

// Default operating window for a weekday with no rule or a broken rule.
const (
	DefaultOpen  Clock = 9 * 60
	DefaultClose Clock = 17 * 60
)

// Window is the resolved operating window for one weekday.
type Window struct {
	Weekday time.Weekday
	Open    Clock
	Close   Clock
	Closed  bool

	// Configured is false when no rule exists for the weekday and the
	// default window is in effect.
	Configured bool
}

// DefaultWindow is the window used for a weekday with no configured rule.
func DefaultWindow(wd time.Weekday) Window {
	return Window{Weekday: wd, Open: DefaultOpen, Close: DefaultClose}
}

// IsOutsideHours reports whether an event starting at start must be flagged.
//
// Unconfigured and closed days are never flagged; closed-day styling takes
// over instead. Starting exactly at opening or closing time is compliant.
func (w Window) IsOutsideHours(start time.Time) bool {
	if !w.Configured || w.Closed {
		return false
	}
	t := ClockOf(start)
	return t < w.Open || t > w.Close
}

// HourWithin reports whether a grid row starting at hour is shaded as
// business hours: openHour <= hour < closeHour, minutes ignored.
func (w Window) HourWithin(hour int) bool {
	if w.Closed {
		return false
	}
	return hour >= w.Open.Hour() && hour < w.Close.Hour()
}

// Table is a total weekday -> Window lookup built from business-hour rules.
type Table struct {
	days [7]Window
}

// NewTable resolves rules into a table. It never fails: out-of-range
// weekdays and duplicate rules are skipped, and unparsable or inverted times
// fall back to the default window. Each problem is logged once here.
func NewTable(rules []model.BusinessHourRule) *Table {
	t := &Table{}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		t.days[wd] = DefaultWindow(wd)
	}

	for _, r := range rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			appLog.Warn("business hours: ignoring rule with invalid day_of_week", "day_of_week", r.DayOfWeek)
			continue
		}
		wd := time.Weekday(r.DayOfWeek)
		if t.days[wd].Configured {
			appLog.Warn("business hours: ignoring duplicate rule", "weekday", wd.String())
			continue
		}
		t.days[wd] = resolveRule(wd, r)
	}
	return t
}

func resolveRule(wd time.Weekday, r model.BusinessHourRule) Window {
	w := Window{Weekday: wd, Configured: true, Closed: r.IsClosed}

	open, oerr := ParseClock(r.OpenTime)
	closeAt, cerr := ParseClock(r.CloseTime)
	if err := errors.Join(oerr, cerr); err != nil {
		// Closed days need no times; only complain about open ones.
		if !r.IsClosed {
			appLog.Warn("business hours: malformed time, using default window",
				"weekday", wd.String(), "open_time", r.OpenTime, "close_time", r.CloseTime, "err", err)
		}
		w.Open, w.Close = DefaultOpen, DefaultClose
		return w
	}
	if !r.IsClosed && open >= closeAt {
		appLog.Warn("business hours: open_time not before close_time, using default window",
			"weekday", wd.String(), "open_time", r.OpenTime, "close_time", r.CloseTime)
		w.Open, w.Close = DefaultOpen, DefaultClose
		return w
	}
	w.Open, w.Close = open, closeAt
	return w
}

// Lookup returns the window for wd. Out-of-range weekdays get the default.
func (t *Table) Lookup(wd time.Weekday) Window {
	if t == nil || wd < time.Sunday || wd > time.Saturday {
		return DefaultWindow(wd)
	}
	return t.days[wd]
}

// Days returns all seven windows, Sunday first.
func (t *Table) Days() []Window {
	out := make([]Window, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		out = append(out, t.Lookup(wd))
	}
	return out
}

// IsBusinessDay reports whether wd is open. Unconfigured weekdays are open
// so that a shop with no rules yet does not block scheduling.
func (t *Table) IsBusinessDay(wd time.Weekday) bool {
	return !t.Lookup(wd).Closed
}

// IsOutsideHours flags an event whose start falls before opening or after
// closing on its own weekday.
func (t *Table) IsOutsideHours(e model.Event) bool {
	return t.Lookup(e.Start.Weekday()).IsOutsideHours(e.Start)
}

// HourWithinBusinessHours is the hour-cell shading policy for grid views.
func (t *Table) HourWithinBusinessHours(wd time.Weekday, hour int) bool {
	return t.Lookup(wd).HourWithin(hour)
}

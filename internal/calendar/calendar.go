// Package calendar composes the scheduling engine into month, week and day
// view models. It decides what each cell shows; how it looks is up to the
// consumer.
package calendar

import (
	"time"

	"shopcal/internal/hours"
	"shopcal/internal/model"
	"shopcal/internal/schedule"
)

// Options describe the grid geometry and policies shared by all views.
type Options struct {
	// WeekStart is the first column of week rows (Sunday or Monday).
	WeekStart time.Weekday

	// StartHour and HourCount select the hour rows shown in week/day grids.
	StartHour int
	HourCount int
	PxPerHour float64

	// MaxMonthEvents caps chips per month cell; MaxHourEvents per hour cell.
	// Zero disables the cap.
	MaxMonthEvents int
	MaxHourEvents  int

	CarryOver schedule.CarryOverPolicy
}

// DefaultOptions shows a full day grid and three chips per month cell.
func DefaultOptions() Options {
	return Options{
		WeekStart:      time.Monday,
		StartHour:      0,
		HourCount:      24,
		PxPerHour:      60,
		MaxMonthEvents: 3,
		MaxHourEvents:  0,
	}
}

func (o Options) normalized() Options {
	if o.StartHour < 0 || o.StartHour > 23 {
		o.StartHour = 0
	}
	if o.HourCount <= 0 || o.StartHour+o.HourCount > 24 {
		o.HourCount = 24 - o.StartHour
	}
	if o.PxPerHour <= 0 {
		o.PxPerHour = 60
	}
	if o.WeekStart != time.Sunday {
		o.WeekStart = time.Monday
	}
	return o
}

// EventChip is an event annotated for display in a cell.
//
// In a date or hour cell, ClosedDay is the cell's own closed state and
// wins over OutsideHours: a chip in a closed cell is never flagged. Lists
// that are not tied to a cell (carry-over) use the event's start day.
type EventChip struct {
	model.Event
	StatusLabel  string `json:"status_label"`
	OutsideHours bool   `json:"outside_hours"`
	ClosedDay    bool   `json:"closed_day"`
}

// annotate flags events by their own start weekday.
func annotate(events []model.Event, table *hours.Table) []EventChip {
	out := make([]EventChip, 0, len(events))
	for _, e := range events {
		out = append(out, EventChip{
			Event:        e,
			StatusLabel:  e.Status.Title(),
			OutsideHours: table.IsOutsideHours(e),
			ClosedDay:    !table.IsBusinessDay(e.Start.Weekday()),
		})
	}
	return out
}

// annotateCell flags events as drawn in the cell for day.
func annotateCell(events []model.Event, table *hours.Table, day time.Time) []EventChip {
	closed := !table.IsBusinessDay(day.Weekday())
	out := make([]EventChip, 0, len(events))
	for _, e := range events {
		out = append(out, EventChip{
			Event:        e,
			StatusLabel:  e.Status.Title(),
			OutsideHours: !closed && table.IsOutsideHours(e),
			ClosedDay:    closed,
		})
	}
	return out
}

// HourCell is one (date, hour) slot of a week or day grid.
type HourCell struct {
	Date        time.Time   `json:"date"`
	Hour        int         `json:"hour"`
	WithinHours bool        `json:"within_hours"`
	ClosedDay   bool        `json:"closed_day"`
	Events      []EventChip `json:"events"`
	Overflow    int         `json:"overflow"`
}

func hourCell(events []model.Event, table *hours.Table, day time.Time, hour, limit int) HourCell {
	shown, overflow := schedule.Cap(schedule.ByPriority(schedule.ForHour(events, day, hour)), limit)
	return HourCell{
		Date:        day,
		Hour:        hour,
		WithinHours: table.HourWithinBusinessHours(day.Weekday(), hour),
		ClosedDay:   !table.IsBusinessDay(day.Weekday()),
		Events:      annotateCell(shown, table, day),
		Overflow:    overflow,
	}
}

// StartOfWeek returns midnight of the first day of the week containing t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := schedule.Midnight(t)
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -back)
}

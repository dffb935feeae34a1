package calendar

import (
	"time"

	"shopcal/internal/hours"
	"shopcal/internal/model"
	"shopcal/internal/schedule"
)

// DayCell is one date of the month grid.
type DayCell struct {
	Date        time.Time   `json:"date"`
	InMonth     bool        `json:"in_month"`
	IsToday     bool        `json:"is_today"`
	BusinessDay bool        `json:"business_day"`
	Events      []EventChip `json:"events"`
	Overflow    int         `json:"overflow"`
}

// MonthView is a grid of whole weeks covering one month.
type MonthView struct {
	Year  int         `json:"year"`
	Month time.Month  `json:"month"`
	Weeks [][]DayCell `json:"weeks"`
}

// Month builds the month containing anchor. now decides which cell is today.
func Month(events []model.Event, table *hours.Table, anchor, now time.Time, opts Options) MonthView {
	opts = opts.normalized()
	y, m, _ := anchor.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
	last := first.AddDate(0, 1, -1)

	view := MonthView{Year: y, Month: m}
	for weekStart := StartOfWeek(first, opts.WeekStart); !weekStart.After(last); weekStart = weekStart.AddDate(0, 0, 7) {
		row := make([]DayCell, 0, 7)
		for i := 0; i < 7; i++ {
			day := weekStart.AddDate(0, 0, i)
			shown, overflow := schedule.Cap(schedule.ByPriority(schedule.ForDate(events, day)), opts.MaxMonthEvents)
			row = append(row, DayCell{
				Date:        day,
				InMonth:     day.Month() == m,
				IsToday:     schedule.SameDate(day, now),
				BusinessDay: table.IsBusinessDay(day.Weekday()),
				Events:      annotateCell(shown, table, day),
				Overflow:    overflow,
			})
		}
		view.Weeks = append(view.Weeks, row)
	}
	return view
}

// WeekDay is the header of one week column.
type WeekDay struct {
	Date        time.Time `json:"date"`
	IsToday     bool      `json:"is_today"`
	BusinessDay bool      `json:"business_day"`
}

// HourRow is one hour across all seven days.
type HourRow struct {
	Hour  int        `json:"hour"`
	Cells []HourCell `json:"cells"`
}

// WeekView is a 7-day hourly grid.
type WeekView struct {
	Start     time.Time           `json:"start"`
	Days      []WeekDay           `json:"days"`
	Rows      []HourRow           `json:"rows"`
	Indicator *schedule.Indicator `json:"indicator,omitempty"`
}

// Week builds the week containing anchor. The indicator is only set when
// now falls inside the week.
func Week(events []model.Event, table *hours.Table, anchor, now time.Time, opts Options) WeekView {
	opts = opts.normalized()
	start := StartOfWeek(anchor, opts.WeekStart)

	view := WeekView{Start: start}
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
		view.Days = append(view.Days, WeekDay{
			Date:        days[i],
			IsToday:     schedule.SameDate(days[i], now),
			BusinessDay: table.IsBusinessDay(days[i].Weekday()),
		})
	}

	for h := opts.StartHour; h < opts.StartHour+opts.HourCount; h++ {
		row := HourRow{Hour: h, Cells: make([]HourCell, 0, 7)}
		for _, day := range days {
			row.Cells = append(row.Cells, hourCell(events, table, day, h, opts.MaxHourEvents))
		}
		view.Rows = append(view.Rows, row)
	}

	for _, d := range view.Days {
		if d.IsToday {
			ind := schedule.PositionIndicator(now, opts.StartHour, opts.HourCount, opts.PxPerHour)
			view.Indicator = &ind
			break
		}
	}
	return view
}

// DayView is one day's hourly grid with its detail panel.
type DayView struct {
	Date        time.Time           `json:"date"`
	IsToday     bool                `json:"is_today"`
	BusinessDay bool                `json:"business_day"`
	Window      WindowDTO           `json:"window"`
	Cells       []HourCell          `json:"cells"`
	Indicator   *schedule.Indicator `json:"indicator,omitempty"`
	Agenda      []EventChip         `json:"agenda"`
	CarryOver   []EventChip         `json:"carry_over,omitempty"`
}

// Day builds the view for date. CarryOver is only filled when date is today.
func Day(events []model.Event, table *hours.Table, date, now time.Time, opts Options) DayView {
	opts = opts.normalized()
	day := schedule.Midnight(date)

	view := DayView{
		Date:        day,
		IsToday:     schedule.SameDate(day, now),
		BusinessDay: table.IsBusinessDay(day.Weekday()),
		Window:      NewWindowDTO(table.Lookup(day.Weekday())),
		Agenda:      annotateCell(schedule.Chronological(schedule.ForDate(events, day)), table, day),
	}
	for h := opts.StartHour; h < opts.StartHour+opts.HourCount; h++ {
		view.Cells = append(view.Cells, hourCell(events, table, day, h, opts.MaxHourEvents))
	}
	if view.IsToday {
		ind := schedule.PositionIndicator(now, opts.StartHour, opts.HourCount, opts.PxPerHour)
		view.Indicator = &ind
		view.CarryOver = annotate(schedule.ResolveCarryOver(events, now, opts.CarryOver), table)
	}
	return view
}

// WindowDTO is the JSON form of a weekday's operating window.
type WindowDTO struct {
	Weekday    string `json:"weekday"`
	DayOfWeek  int    `json:"day_of_week"`
	OpenTime   string `json:"open_time"`
	CloseTime  string `json:"close_time"`
	IsClosed   bool   `json:"is_closed"`
	Configured bool   `json:"configured"`
}

func NewWindowDTO(w hours.Window) WindowDTO {
	return WindowDTO{
		Weekday:    w.Weekday.String(),
		DayOfWeek:  int(w.Weekday),
		OpenTime:   w.Open.String(),
		CloseTime:  w.Close.String(),
		IsClosed:   w.Closed,
		Configured: w.Configured,
	}
}

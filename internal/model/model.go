package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priority is the urgency of a scheduled job.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities high(0) < medium(1) < low(2). Anything else ranks
// after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Status is the lifecycle state of a job. Values outside the known set are
// carried through untouched.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParsePriority normalizes free-form priority text. Known values are matched
// case-insensitively; other text is returned trimmed but otherwise as-is.
func ParsePriority(s string) Priority {
	s = strings.TrimSpace(s)
	switch cases.Fold().String(s) {
	case "high":
		return PriorityHigh
	case "medium", "normal":
		return PriorityMedium
	case "low":
		return PriorityLow
	}
	return Priority(s)
}

// ParseStatus normalizes free-form status text, e.g. "In Progress" and
// "IN_PROGRESS" both become StatusInProgress.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	key := cases.Fold().String(s)
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	switch key {
	case "scheduled":
		return StatusScheduled
	case "in-progress", "inprogress":
		return StatusInProgress
	case "completed", "complete", "done":
		return StatusCompleted
	case "cancelled", "canceled":
		return StatusCancelled
	}
	return Status(s)
}

// Title formats a status for display ("in-progress" -> "In Progress").
func (s Status) Title() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "-", " "))
}

// Event is a scheduled job as seen by the calendar engine.
//
// Start and End are wall-clock times: only their calendar fields in their own
// location are read, never their absolute instant relative to other zones.
type Event struct {
	ID string `json:"id"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	Title       string `json:"title"`
	Technician  string `json:"technician,omitempty"`
	Customer    string `json:"customer,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Type        string `json:"type,omitempty"`
}

// BusinessHourRule is one row of the weekly operating-hours schedule.
// DayOfWeek uses 0=Sunday..6=Saturday and times are "HH:MM" (24h).
type BusinessHourRule struct {
	DayOfWeek int    `yaml:"day_of_week" json:"day_of_week"`
	OpenTime  string `yaml:"open_time" json:"open_time"`
	CloseTime string `yaml:"close_time" json:"close_time"`
	IsClosed  bool   `yaml:"is_closed" json:"is_closed"`
}

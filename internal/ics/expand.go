package ics

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "shopcal/internal/log"
	"shopcal/internal/model"
)

const defaultMaxOccurrencesPerJob = 5000

// occurrenceNamespace seeds deterministic IDs for recurring job instances.
var occurrenceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shopcal:occurrence"))

// ExpandConfig controls how recurring jobs are expanded.
type ExpandConfig struct {
	// DisplayLocation is the zone whose wall clock the engine reads.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerJob caps a single RRULE. Zero uses the default.
	MaxOccurrencesPerJob int
}

// ExpandResult holds the calendar events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// Expand turns parsed jobs into concrete events inside the configured range:
// single jobs are range-filtered, RRULE jobs expanded with EXDATEs removed,
// and RECURRENCE-ID overrides replace the instance they name.
func Expand(jobs []ParsedJob, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerJob <= 0 {
		cfg.MaxOccurrencesPerJob = defaultMaxOccurrencesPerJob
	}

	baseByUID := make(map[string][]ParsedJob)
	overridesByUID := make(map[string][]ParsedJob)
	var order []string

	for _, job := range jobs {
		if job.IsOverride && job.Recurrence != nil {
			overridesByUID[job.UID] = append(overridesByUID[job.UID], job)
			continue
		}
		if _, seen := baseByUID[job.UID]; !seen {
			order = append(order, job.UID)
		}
		baseByUID[job.UID] = append(baseByUID[job.UID], job)
	}

	events := make([]model.Event, 0)
	for _, uid := range order {
		ov := overridesByUID[uid]
		truncated := false

		for _, job := range baseByUID[uid] {
			var occ []model.Event
			var hitCap bool
			if job.RawRRule == "" {
				occ = expandSingle(job, ov, cfg)
			} else {
				occ, hitCap = expandRecurring(job, ov, cfg)
			}
			truncated = truncated || hitCap
			events = append(events, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences at cap", "uid", uid, "cap", cfg.MaxOccurrencesPerJob)
		}
	}

	result.Events = events
	return result, nil
}

func expandSingle(job ParsedJob, overrides []ParsedJob, cfg ExpandConfig) []model.Event {
	if i, ok := overrideIndex(overrides, job.Start); ok {
		job = overrides[i]
	}
	if !rangesOverlap(job.Start, job.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Event{toEvent(job, job.Start, job.End, job.UID, cfg.DisplayLocation)}
}

func expandRecurring(job ParsedJob, overrides []ParsedJob, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(job.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", job.UID, "rrule", job.RawRRule)
		return nil, false
	}
	r.DTStart(job.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range job.ExDates {
		set.ExDate(ex.In(job.Start.Location()))
	}

	// Start the window one job-length early so that instances already
	// running at RangeStart are kept.
	dur := job.End.Sub(job.Start)
	from := cfg.RangeStart.Add(-dur).In(job.Start.Location())
	to := cfg.RangeEnd.In(job.Start.Location())

	starts := set.Between(from, to, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerJob {
		starts = starts[:cfg.MaxOccurrencesPerJob]
		hitCap = true
	}

	out := make([]model.Event, 0, len(starts))
	used := make(map[int]bool)
	for _, s := range starts {
		end := s.Add(dur)
		if job.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			end = s.AddDate(0, 0, 1)
		}

		// IDs derive from the scheduled instance start, so a moved
		// override keeps its identity.
		id := occurrenceID(job.UID, s)
		inst := job
		if i, ok := overrideIndex(overrides, s); ok {
			used[i] = true
			o := overrides[i]
			if !rangesOverlap(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			inst = o
			s, end = o.Start, o.End
		}
		out = append(out, toEvent(inst, s, end, id, cfg.DisplayLocation))
	}

	// Overrides whose scheduled instance lies outside the window can still
	// be moved into the range.
	for i, o := range overrides {
		if used[i] || o.Recurrence == nil {
			continue
		}
		rec := *o.Recurrence
		if !rec.Before(from) && !rec.After(to) {
			continue
		}
		if len(set.Between(rec, rec, true)) == 0 {
			continue
		}
		if !rangesOverlap(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, toEvent(o, o.Start, o.End, occurrenceID(job.UID, rec), cfg.DisplayLocation))
	}
	return out, hitCap
}

func occurrenceID(uid string, start time.Time) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(uid+"|"+start.UTC().Format(time.RFC3339))).String()
}

// overrideIndex returns the index of the override whose RECURRENCE-ID
// equals start.
func overrideIndex(overrides []ParsedJob, start time.Time) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return i, true
		}
	}
	return -1, false
}

func toEvent(job ParsedJob, start, end time.Time, id string, loc *time.Location) model.Event {
	return model.Event{
		ID:          id,
		Start:       start.In(loc),
		End:         end.In(loc),
		Priority:    job.Priority,
		Status:      job.Status,
		Title:       job.Title,
		Technician:  job.Technician,
		Customer:    job.Customer,
		Description: job.Description,
		Location:    job.Location,
		Type:        job.Type,
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

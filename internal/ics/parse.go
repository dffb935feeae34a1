package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shopcal/internal/log"
	"shopcal/internal/model"
)

// Non-standard properties carrying job metadata.
const (
	PropJobPriority ical.ComponentProperty = "X-JOB-PRIORITY"
	PropJobStatus   ical.ComponentProperty = "X-JOB-STATUS"
	PropTechnician  ical.ComponentProperty = "X-TECHNICIAN"
	PropCustomer    ical.ComponentProperty = "X-CUSTOMER"
)

// ParsedJob is a VEVENT from a job feed before recurrence expansion.
type ParsedJob struct {
	Source Source

	UID string
	Seq int

	Title       string
	Description string
	Location    string
	Type        string
	Technician  string
	Customer    string
	Priority    model.Priority
	Status      model.Status

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
	IsOverride bool
}

// ParseFeed parses one ICS payload into jobs. Broken VEVENTs are logged and
// skipped; only an unreadable calendar is an error.
func ParseFeed(src Source, body []byte) ([]ParsedJob, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	jobs := make([]ParsedJob, 0)
	for _, comp := range cal.Events() {
		job, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "id", src.ID)
			continue
		}
		jobs = append(jobs, job)
	}

	appLog.Info("ics parse completed", "id", src.ID, "job_count", len(jobs))
	return jobs, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedJob, error) {
	out := ParsedJob{Source: src}

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		out.Seq = n
	}

	out.Title = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.Technician = propValue(ve, PropTechnician)
	out.Customer = propValue(ve, PropCustomer)
	if cats := propValue(ve, ical.ComponentPropertyCategories); cats != "" {
		first, _, _ := strings.Cut(cats, ",")
		out.Type = strings.TrimSpace(first)
	}
	out.Priority = jobPriority(propValue(ve, PropJobPriority), propValue(ve, ical.ComponentPropertyPriority))
	out.Status = jobStatus(propValue(ve, PropJobStatus), propValue(ve, ical.ComponentPropertyStatus))

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	start = floatingIn(ve.GetProperty(ical.ComponentPropertyDtStart), start, src.Location)
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = floatingIn(ve.GetProperty(ical.ComponentPropertyDtEnd), end, src.Location)
	} else {
		// No DTEND: a zero-length job.
		out.End = start
	}

	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil {
		if vs, ok := dt.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dt.Value, "T") {
			out.AllDay = true
		}
	}
	if out.AllDay && !out.End.After(out.Start) {
		out.End = out.Start.AddDate(0, 0, 1)
	}

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		if t, err := parseICSTime(rid.Value, start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// jobPriority prefers the textual X-JOB-PRIORITY. Otherwise it maps the
// RFC 5545 PRIORITY scale: 1-4 high, 5 or unset medium, 6-9 low.
func jobPriority(text, numeric string) model.Priority {
	if text != "" {
		return model.ParsePriority(text)
	}
	n, err := strconv.Atoi(numeric)
	switch {
	case err != nil || n == 0 || n == 5:
		return model.PriorityMedium
	case n < 5:
		return model.PriorityHigh
	default:
		return model.PriorityLow
	}
}

// jobStatus prefers X-JOB-STATUS, then maps the VEVENT STATUS.
func jobStatus(text, status string) model.Status {
	if text != "" {
		return model.ParseStatus(text)
	}
	switch strings.ToUpper(status) {
	case "CANCELLED":
		return model.StatusCancelled
	case "COMPLETED":
		return model.StatusCompleted
	default:
		return model.StatusScheduled
	}
}

// floatingIn re-reads a floating time (no TZID, no UTC suffix) as wall
// clock in loc. The ical library parses those in time.Local.
func floatingIn(prop *ical.IANAProperty, t time.Time, loc *time.Location) time.Time {
	if prop == nil || loc == nil {
		return t
	}
	if _, ok := prop.ICalParameters["TZID"]; ok || strings.HasSuffix(prop.Value, "Z") {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// parseICSTime parses a bare DATE/DATE-TIME value as used in EXDATE and
// RECURRENCE-ID. Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

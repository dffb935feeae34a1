package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"shopcal/internal/model"
)

const wallClockLayout = "20060102T150405"

// Export serializes events as an ICS calendar using the same property
// mapping ParseFeed reads, so a round trip keeps every field.
func Export(events []model.Event, prodID string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(stamp)
		setWallClock(ve, ical.ComponentPropertyDtStart, e.Start)
		setWallClock(ve, ical.ComponentPropertyDtEnd, e.End)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Type != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, e.Type)
		}
		if e.Technician != "" {
			ve.SetProperty(PropTechnician, e.Technician)
		}
		if e.Customer != "" {
			ve.SetProperty(PropCustomer, e.Customer)
		}
		if e.Priority != "" {
			ve.SetProperty(PropJobPriority, string(e.Priority))
		}
		if e.Status != "" {
			ve.SetProperty(PropJobStatus, string(e.Status))
		}
		if e.Status == model.StatusCancelled {
			ve.SetStatus(ical.ObjectStatusCancelled)
		}
	}

	return cal.Serialize()
}

// setWallClock writes t with its IANA zone as TZID. Zones a reader could
// not load (Local, fixed offsets) are written as UTC instead.
func setWallClock(ve *ical.VEvent, prop ical.ComponentProperty, t time.Time) {
	name := t.Location().String()
	if name == "UTC" || name == "Local" {
		ve.SetProperty(prop, t.UTC().Format(wallClockLayout)+"Z")
		return
	}
	if _, err := time.LoadLocation(name); err != nil {
		ve.SetProperty(prop, t.UTC().Format(wallClockLayout)+"Z")
		return
	}
	ve.SetProperty(prop, t.Format(wallClockLayout), ical.WithTZID(name))
}

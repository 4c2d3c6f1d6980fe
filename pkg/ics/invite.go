package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//session-booking//EN"

// Invite describes a single session for an .ics attachment
type Invite struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Organizer   string
	Attendees   []string
	Start       time.Time
	End         time.Time
	Stamp       time.Time
	// Cancelled produces a METHOD:CANCEL calendar that removes the event
	Cancelled bool
}

// BuildInvite renders the invite as an iCalendar document
func BuildInvite(inv Invite) []byte {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	if inv.Cancelled {
		cal.SetMethod(ical.MethodCancel)
	} else {
		cal.SetMethod(ical.MethodRequest)
	}

	ev := cal.AddEvent(inv.UID)
	ev.SetDtStampTime(inv.Stamp.UTC())
	ev.SetStartAt(inv.Start.UTC())
	ev.SetEndAt(inv.End.UTC())
	ev.SetSummary(inv.Summary)
	if inv.Description != "" {
		ev.SetDescription(inv.Description)
	}
	if inv.Location != "" {
		ev.SetLocation(inv.Location)
	}
	if inv.Organizer != "" {
		ev.SetOrganizer("mailto:" + inv.Organizer)
	}
	for _, a := range inv.Attendees {
		ev.AddAttendee(a)
	}
	if inv.Cancelled {
		ev.SetStatus(ical.ObjectStatusCancelled)
	} else {
		ev.SetStatus(ical.ObjectStatusConfirmed)
	}

	return []byte(cal.Serialize())
}

package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/jakechorley/session-booking/pkg/db"
	"github.com/jakechorley/session-booking/pkg/ics"
)

const sessionTimeLayout = "Monday 2 January 2006 at 15:04"

func formatSessionTime(slot *db.Slot, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return slot.StartsAt.In(loc).Format(sessionTimeLayout)
}

func sessionSummary(offering *db.ServiceOffering, volunteerName string) string {
	return fmt.Sprintf("%s session with %s", offering.Name, volunteerName)
}

func sessionInvite(b *db.Booking, slot *db.Slot, offering *db.ServiceOffering, now time.Time, cancelled bool) []byte {
	return ics.BuildInvite(ics.Invite{
		UID:       b.ID,
		Summary:   sessionSummary(offering, b.VolunteerName),
		Location:  b.VideoLink,
		Organizer: b.HostEmail,
		Attendees: []string{b.VolunteerEmail},
		Start:     slot.StartsAt,
		End:       slot.EndsAt,
		Stamp:     now,
		Cancelled: cancelled,
	})
}

func confirmationNotification(b *db.Booking, slot *db.Slot, offering *db.ServiceOffering, loc *time.Location, now time.Time) Notification {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", b.VolunteerName)
	fmt.Fprintf(&body, "Your %s session is booked for %s.\n", offering.Name, formatSessionTime(slot, loc))
	if b.HostEmail != "" {
		fmt.Fprintf(&body, "Your host is %s.\n", b.HostEmail)
	}
	if b.VideoLink != "" {
		fmt.Fprintf(&body, "Join online: %s\n", b.VideoLink)
	}
	body.WriteString("\nIf you can no longer attend, please reply to let us know.\n")

	return Notification{
		To:      b.VolunteerEmail,
		Subject: fmt.Sprintf("Booking confirmed: %s", offering.Name),
		Body:    body.String(),
		Invite:  sessionInvite(b, slot, offering, now, false),
	}
}

func cancellationNotification(b *db.Booking, slot *db.Slot, offering *db.ServiceOffering, loc *time.Location, now time.Time) Notification {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", b.VolunteerName)
	fmt.Fprintf(&body, "Your %s session on %s has been cancelled.\n", offering.Name, formatSessionTime(slot, loc))
	if b.CancelReason != "" {
		fmt.Fprintf(&body, "Reason: %s\n", b.CancelReason)
	}

	return Notification{
		To:      b.VolunteerEmail,
		Subject: fmt.Sprintf("Booking cancelled: %s", offering.Name),
		Body:    body.String(),
		Invite:  sessionInvite(b, slot, offering, now, true),
	}
}

func hostChangeNotification(b *db.Booking, slot *db.Slot, offering *db.ServiceOffering, loc *time.Location) Notification {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", b.VolunteerName)
	fmt.Fprintf(&body, "Your %s session on %s will now be hosted by %s.\n", offering.Name, formatSessionTime(slot, loc), b.HostEmail)

	return Notification{
		To:      b.VolunteerEmail,
		Subject: fmt.Sprintf("New host for your %s session", offering.Name),
		Body:    body.String(),
	}
}

func reminderNotification(detail db.BookingDetail, label string, loc *time.Location) Notification {
	b := detail.Booking
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", b.VolunteerName)
	fmt.Fprintf(&body, "This is a reminder of your %s session on %s.\n", detail.Offering.Name, formatSessionTime(&detail.Slot, loc))
	if b.VideoLink != "" {
		fmt.Fprintf(&body, "Join online: %s\n", b.VideoLink)
	}

	return Notification{
		To:      b.VolunteerEmail,
		Subject: fmt.Sprintf("Reminder (%s): %s session", label, detail.Offering.Name),
		Body:    body.String(),
	}
}

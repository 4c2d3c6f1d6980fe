package db

import "time"

// DateLayout is the civil-date layout used for slot dates
const DateLayout = "2006-01-02"

// TimeLayout is the time-of-day layout used for slot start/end times
const TimeLayout = "15:04"

// Modality describes how a session is delivered
type Modality string

const (
	ModalityVirtual  Modality = "virtual"
	ModalityInPerson Modality = "in-person"
)

// ServiceOffering represents a bookable session type
type ServiceOffering struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	StartHour    int      `json:"startHour"`
	EndHour      int      `json:"endHour"`
	Modality     Modality `json:"modality"`
	MaxOccupancy int      `json:"maxOccupancy"`
}

// Owner represents a company/offeror that holds a recurrence configuration.
// DayPatterns hold the raw pattern strings as entered; they are parsed once
// by the recurrence package before resolution.
type Owner struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DayPatterns  []string `json:"dayPatterns"`
	FullCalendar bool     `json:"fullCalendar"`
}

// Slot represents one bookable hour for one offering on one date
type Slot struct {
	ID               string    `json:"id"`
	OfferingID       string    `json:"offeringId"`
	OwnerID          string    `json:"ownerId"`
	Date             string    `json:"date"`
	StartTime        string    `json:"startTime"`
	EndTime          string    `json:"endTime"`
	StartsAt         time.Time `json:"startsAt"`
	EndsAt           time.Time `json:"endsAt"`
	MaxOccupancy     int       `json:"maxOccupancy"`
	CurrentOccupancy int       `json:"currentOccupancy"`
	Active           bool      `json:"active"`
}

// Available reports whether the slot is active and has free capacity
func (s Slot) Available() bool {
	return s.Active && s.CurrentOccupancy < s.MaxOccupancy
}

// SlotKey is the uniqueness key used to skip already-materialized slots
type SlotKey struct {
	OwnerID    string
	OfferingID string
	Date       string
	StartTime  string
}

// Key returns the uniqueness key of the slot
func (s Slot) Key() SlotKey {
	return SlotKey{OwnerID: s.OwnerID, OfferingID: s.OfferingID, Date: s.Date, StartTime: s.StartTime}
}

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents a volunteer's claim on a slot.
// HostEmail and ExternalEventID are empty when unset.
type Booking struct {
	ID              string        `json:"id"`
	SlotID          string        `json:"slotId"`
	VolunteerName   string        `json:"volunteerName"`
	VolunteerEmail  string        `json:"volunteerEmail"`
	VolunteerPhone  string        `json:"volunteerPhone,omitempty"`
	HostEmail       string        `json:"hostEmail,omitempty"`
	ExternalEventID string        `json:"externalEventId,omitempty"`
	VideoLink       string        `json:"videoLink,omitempty"`
	Status          BookingStatus `json:"status"`
	CancelReason    string        `json:"cancelReason,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	CancelledAt     *time.Time    `json:"cancelledAt,omitempty"`
}

// BookingDetail joins a booking with its slot and offering
type BookingDetail struct {
	Booking  Booking         `json:"booking"`
	Slot     Slot            `json:"slot"`
	Offering ServiceOffering `json:"offering"`
}

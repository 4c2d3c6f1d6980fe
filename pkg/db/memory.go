package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryDB is an in-process Database used for dry runs and tests.
// A single mutex serialises every operation, so ClaimSlot is a true
// compare-and-increment.
type MemoryDB struct {
	mu        sync.Mutex
	offerings map[string]ServiceOffering
	owners    map[string]Owner
	slots     map[string]Slot
	slotKeys  map[SlotKey]string
	bookings  map[string]Booking
	// order keeps insertion order so listings are stable
	bookingOrder []string
}

var _ Database = (*MemoryDB)(nil)

// NewMemoryDB creates an empty in-memory database
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		offerings: make(map[string]ServiceOffering),
		owners:    make(map[string]Owner),
		slots:     make(map[string]Slot),
		slotKeys:  make(map[SlotKey]string),
		bookings:  make(map[string]Booking),
	}
}

// Close is a no-op
func (m *MemoryDB) Close() {}

func (m *MemoryDB) GetOfferings(ctx context.Context) ([]ServiceOffering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offerings := make([]ServiceOffering, 0, len(m.offerings))
	for _, o := range m.offerings {
		offerings = append(offerings, o)
	}
	sort.Slice(offerings, func(i, j int) bool { return offerings[i].Slug < offerings[j].Slug })
	return offerings, nil
}

func (m *MemoryDB) GetOffering(ctx context.Context, offeringID string) (*ServiceOffering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offerings[offeringID]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryDB) UpsertOffering(ctx context.Context, offering *ServiceOffering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerings[offering.ID] = *offering
	return nil
}

func (m *MemoryDB) GetOwners(ctx context.Context) ([]Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make([]Owner, 0, len(m.owners))
	for _, o := range m.owners {
		owners = append(owners, copyOwner(o))
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].ID < owners[j].ID })
	return owners, nil
}

func (m *MemoryDB) GetOwner(ctx context.Context, ownerID string) (*Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.owners[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	owner := copyOwner(o)
	return &owner, nil
}

func (m *MemoryDB) UpsertOwner(ctx context.Context, owner *Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[owner.ID] = copyOwner(*owner)
	return nil
}

func copyOwner(o Owner) Owner {
	o.DayPatterns = append([]string(nil), o.DayPatterns...)
	return o
}

func (m *MemoryDB) LatestSlotDate(ctx context.Context, ownerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := ""
	for _, s := range m.slots {
		// civil dates in DateLayout compare correctly as strings
		if s.OwnerID == ownerID && s.Date > latest {
			latest = s.Date
		}
	}
	return latest, nil
}

func (m *MemoryDB) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, s := range slots {
		if _, exists := m.slotKeys[s.Key()]; exists {
			continue
		}
		m.slots[s.ID] = s
		m.slotKeys[s.Key()] = s.ID
		inserted++
	}
	return inserted, nil
}

func (m *MemoryDB) GetSlot(ctx context.Context, slotID string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryDB) GetSlotsForOwner(ctx context.Context, ownerID, fromDate, toDate string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []Slot
	for _, s := range m.slots {
		if s.OwnerID != ownerID || s.Date < fromDate || s.Date > toDate {
			continue
		}
		slots = append(slots, s)
	}
	sortSlots(slots)
	return slots, nil
}

func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartsAt.Equal(slots[j].StartsAt) {
			return slots[i].StartsAt.Before(slots[j].StartsAt)
		}
		return slots[i].OfferingID < slots[j].OfferingID
	})
}

func (m *MemoryDB) ClaimSlot(ctx context.Context, slotID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotID]
	if !ok {
		return false, ErrNotFound
	}
	if s.CurrentOccupancy >= s.MaxOccupancy {
		return false, nil
	}
	s.CurrentOccupancy++
	m.slots[slotID] = s
	return true, nil
}

func (m *MemoryDB) ReleaseSlot(ctx context.Context, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if s.CurrentOccupancy > 0 {
		s.CurrentOccupancy--
	}
	m.slots[slotID] = s
	return nil
}

func (m *MemoryDB) InsertBooking(ctx context.Context, booking *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[booking.SlotID]; !ok {
		return ErrNotFound
	}
	if _, exists := m.bookings[booking.ID]; !exists {
		m.bookingOrder = append(m.bookingOrder, booking.ID)
	}
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *MemoryDB) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryDB) GetConfirmedBookingsByEmail(ctx context.Context, email string) ([]BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var details []BookingDetail
	for _, id := range m.bookingOrder {
		b := m.bookings[id]
		if b.Status != BookingStatusConfirmed || !strings.EqualFold(b.VolunteerEmail, email) {
			continue
		}
		details = append(details, m.detailLocked(b))
	}
	return details, nil
}

func (m *MemoryDB) CountConfirmedBookingsByHost(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, b := range m.bookings {
		if b.Status == BookingStatusConfirmed && b.HostEmail != "" {
			counts[b.HostEmail]++
		}
	}
	return counts, nil
}

func (m *MemoryDB) CancelBooking(ctx context.Context, bookingID, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != BookingStatusConfirmed {
		return false, nil
	}
	b.Status = BookingStatusCancelled
	b.CancelReason = reason
	cancelledAt := at
	b.CancelledAt = &cancelledAt
	m.bookings[bookingID] = b
	return true, nil
}

func (m *MemoryDB) UpdateBookingHost(ctx context.Context, bookingID, hostEmail, externalEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	b.HostEmail = hostEmail
	b.ExternalEventID = externalEventID
	m.bookings[bookingID] = b
	return nil
}

func (m *MemoryDB) GetConfirmedBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var details []BookingDetail
	for _, id := range m.bookingOrder {
		b := m.bookings[id]
		if b.Status != BookingStatusConfirmed {
			continue
		}
		s, ok := m.slots[b.SlotID]
		if !ok || s.StartsAt.Before(from) || s.StartsAt.After(to) {
			continue
		}
		details = append(details, m.detailLocked(b))
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Slot.StartsAt.Before(details[j].Slot.StartsAt)
	})
	return details, nil
}

func (m *MemoryDB) detailLocked(b Booking) BookingDetail {
	s := m.slots[b.SlotID]
	return BookingDetail{
		Booking:  b,
		Slot:     s,
		Offering: m.offerings[s.OfferingID],
	}
}

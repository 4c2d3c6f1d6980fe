package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jakechorley/session-booking/pkg/db"
)

// mockCalendar implements CalendarClient for testing
type mockCalendar struct {
	mu          sync.Mutex
	createErr   error
	deleteErr   error
	transferErr error
	videoLink   string
	nextID      int
	created     map[string]string // eventID -> host
	deleted     []string
	transfers   []string // "eventID:from->to"
}

func newMockCalendar() *mockCalendar {
	return &mockCalendar{created: make(map[string]string)}
}

func (m *mockCalendar) CreateEvent(ctx context.Context, hostEmail string, event CalendarEvent) (*CreatedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	id := fmt.Sprintf("evt-%d", m.nextID)
	m.created[id] = hostEmail
	link := ""
	if event.WantsVideoLink {
		link = m.videoLink
	}
	return &CreatedEvent{EventID: id, VideoLink: link}, nil
}

func (m *mockCalendar) DeleteEvent(ctx context.Context, hostEmail, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, eventID)
	return nil
}

func (m *mockCalendar) TransferEvent(ctx context.Context, eventID, fromHost, toHost string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, fmt.Sprintf("%s:%s->%s", eventID, fromHost, toHost))
	if m.transferErr != nil {
		return "", m.transferErr
	}
	return eventID + "-moved", nil
}

// mockNotifier implements Notifier for testing
type mockNotifier struct {
	mu      sync.Mutex
	err     error
	failFor map[string]bool
	sent    []Notification
}

func (m *mockNotifier) SendNotification(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil || m.failFor[n.To] {
		return fmt.Errorf("smtp unavailable")
	}
	m.sent = append(m.sent, n)
	return nil
}

// mockDeduper implements Deduper for testing
type mockDeduper struct {
	seen map[string]bool
	err  error
}

func newMockDeduper() *mockDeduper {
	return &mockDeduper{seen: make(map[string]bool)}
}

func (m *mockDeduper) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *mockDeduper) Forget(ctx context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

// failingStore wraps MemoryDB and injects write failures
type failingStore struct {
	*db.MemoryDB
	insertErr     error
	updateHostErr error
	cancelErr     error
	countErr      error
}

func (f *failingStore) InsertBooking(ctx context.Context, booking *db.Booking) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MemoryDB.InsertBooking(ctx, booking)
}

func (f *failingStore) UpdateBookingHost(ctx context.Context, bookingID, hostEmail, externalEventID string) error {
	if f.updateHostErr != nil {
		return f.updateHostErr
	}
	return f.MemoryDB.UpdateBookingHost(ctx, bookingID, hostEmail, externalEventID)
}

func (f *failingStore) CancelBooking(ctx context.Context, bookingID, reason string, at time.Time) (bool, error) {
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	return f.MemoryDB.CancelBooking(ctx, bookingID, reason, at)
}

func (f *failingStore) CountConfirmedBookingsByHost(ctx context.Context) (map[string]int, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	return f.MemoryDB.CountConfirmedBookingsByHost(ctx)
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var mentoring = db.ServiceOffering{
	ID:           "offering-mentoring",
	Slug:         "mentoring",
	Name:         "Mentoring",
	StartHour:    9,
	EndHour:      12,
	Modality:     db.ModalityVirtual,
	MaxOccupancy: 2,
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(db.DateLayout, s)
	require.NoError(t, err)
	return d
}

// addSlot stores a slot for the mentoring offering at date and hour (UTC)
func addSlot(t *testing.T, store *db.MemoryDB, date string, hour, maxOccupancy int) db.Slot {
	t.Helper()
	ctx := context.Background()
	offering := mentoring
	require.NoError(t, store.UpsertOffering(ctx, &offering))

	d := mustDate(t, date)
	startsAt := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
	slot := db.Slot{
		ID:           fmt.Sprintf("slot-%s-%02d", date, hour),
		OfferingID:   offering.ID,
		OwnerID:      "owner-1",
		Date:         date,
		StartTime:    startsAt.Format(db.TimeLayout),
		EndTime:      startsAt.Add(time.Hour).Format(db.TimeLayout),
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(time.Hour),
		MaxOccupancy: maxOccupancy,
		Active:       true,
	}
	n, err := store.InsertSlots(ctx, []db.Slot{slot})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return slot
}

func occupancy(t *testing.T, store *db.MemoryDB, slotID string) int {
	t.Helper()
	s, err := store.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	return s.CurrentOccupancy
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jakechorley/session-booking/pkg/core/model"
	"github.com/jakechorley/session-booking/pkg/core/services"
	"github.com/jakechorley/session-booking/pkg/db"
)

// defaultListDays is the listing range when "to" is omitted
const defaultListDays = 30

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type slotsResponse struct {
	OwnerID string    `json:"ownerId"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Slots   []db.Slot `json:"slots"`
}

// ListSlots handles GET /owners/{ownerID}/slots?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Materialization is triggered in the background and not awaited.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	from, err := h.parseDate(r.URL.Query().Get("from"), "from", h.today())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := h.parseDate(r.URL.Query().Get("to"), "to", from.AddDate(0, 0, defaultListDays))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var trigger services.SlotTrigger
	if h.Materializer != nil {
		trigger = h.Materializer
	}

	slots, err := services.ListAvailableSlots(r.Context(), h.Store, trigger, ownerID, from, to, h.Log)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, slotsResponse{
		OwnerID: ownerID,
		From:    from.Format(db.DateLayout),
		To:      to.Format(db.DateLayout),
		Slots:   slots,
	})
}

// EnsureSlots handles POST /owners/{ownerID}/slots:ensure and waits for the run
func (h *Handler) EnsureSlots(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	created, err := h.Materializer.EnsureOwner(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ownerId": ownerID, "created": created})
}

type bookingResponse struct {
	Booking          *db.Booking `json:"booking"`
	CalendarDegraded bool        `json:"calendarDegraded"`
}

// Book handles POST /slots/{slotID}/bookings.
// 201 with the booking, or 409 with the rejection reason.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotID")

	var volunteer model.VolunteerInfo
	if err := decodeBody(r, &volunteer); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Allocator.AllocateBooking(r.Context(), slotID, volunteer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !result.Confirmed() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "booking rejected", Reason: string(result.Rejection)})
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse{Booking: result.Booking, CalendarDegraded: result.CalendarDegraded})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking handles POST /bookings/{bookingID}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	booking, err := h.Allocator.CancelBooking(r.Context(), chi.URLParam(r, "bookingID"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type reassignRequest struct {
	Host string `json:"host"`
}

// ReassignHost handles POST /bookings/{bookingID}/host
func (h *Handler) ReassignHost(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Host == "" {
		h.writeError(w, r, model.NewValidationError("host", "is required"))
		return
	}

	booking, err := h.Allocator.ReassignHost(r.Context(), chi.URLParam(r, "bookingID"), req.Host)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type remindersResponse struct {
	Window    string             `json:"window"`
	Reference time.Time          `json:"reference"`
	Bookings  []db.BookingDetail `json:"bookings"`
}

// DueReminders handles GET /reminders/{window}?at=RFC3339. It only selects;
// nothing is sent.
func (h *Handler) DueReminders(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "window")

	reference := h.Clock.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			h.writeError(w, r, model.NewValidationError("at", "must be RFC3339: %v", err))
			return
		}
		reference = t
	}

	due, err := services.DueBookings(r.Context(), h.Store, h.Windows, reference, label)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remindersResponse{Window: label, Reference: reference, Bookings: due})
}

func (h *Handler) today() time.Time {
	now := h.Clock.Now().In(h.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Location)
}

func (h *Handler) parseDate(raw, field string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(db.DateLayout, raw, h.Location)
	if err != nil {
		return time.Time{}, model.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return t, nil
}

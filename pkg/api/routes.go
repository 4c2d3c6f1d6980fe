package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Routes returns the router for the booking API
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Get("/slots", h.ListSlots)
		r.Post("/slots:ensure", h.EnsureSlots)
	})

	r.Post("/slots/{slotID}/bookings", h.Book)

	r.Route("/bookings/{bookingID}", func(r chi.Router) {
		r.Post("/cancel", h.CancelBooking)
		r.Post("/host", h.ReassignHost)
	})

	r.Get("/reminders/{window}", h.DueReminders)
	return r
}

// requestLogger logs one line per request at Info
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

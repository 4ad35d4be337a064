package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-concierge/internal/http/middleware"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// ConfirmRequest is the body of POST /confirm-appointment.
type ConfirmRequest struct {
	Date      string `json:"date"`
	TimeRange string `json:"time_range"`
}

// ConfirmResponse carries the stored appointment and where its calendar file lives.
type ConfirmResponse struct {
	Appointment *Appointment `json:"appointment"`
	CalendarRef string       `json:"calendar_ref"`
	CalendarURL string       `json:"calendar_url,omitempty"`
}

// Handler exposes the slot table and appointment confirmation over HTTP.
type Handler struct {
	service *Service
	slots   []Request
	logger  *logging.Logger
}

func NewHandler(service *Service, slots []Request, logger *logging.Logger) *Handler {
	if service == nil {
		panic("booking: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, slots: slots, logger: logger}
}

// Confirm handles POST /confirm-appointment.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID, _ := middleware.SessionIDFromContext(r.Context())

	appt, err := h.service.Confirm(r.Context(), sessionID, Request{Date: req.Date, TimeRange: req.TimeRange})
	if err != nil {
		if errors.Is(err, ErrMalformedRequest) {
			h.writeError(w, r, http.StatusBadRequest, "date or time range is not valid")
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("failed to confirm appointment", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to confirm appointment")
		return
	}
	h.writeJSON(w, r, http.StatusCreated, ConfirmResponse{
		Appointment: appt,
		CalendarRef: appt.CalendarRef,
		CalendarURL: h.service.CalendarURL(appt.ID),
	})
}

// Slots handles GET /slots.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	slots := h.slots
	if slots == nil {
		slots = []Request{}
	}
	h.writeJSON(w, r, http.StatusOK, map[string][]Request{"slots": slots})
}

// Calendar handles GET /appointments/{id}/calendar.ics.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !safeIDPattern.MatchString(id) {
		http.NotFound(w, r)
		return
	}
	ics, err := h.service.Calendar(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to load calendar file", "appointment_id", id, "error", err)
		http.Error(w, "failed to load calendar", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointment.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ics)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to write JSON response", "error", err)
	}
}

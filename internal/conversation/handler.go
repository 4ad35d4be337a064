package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/spa-concierge/internal/http/middleware"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

const maxMessageBytes = 16 << 10

// MessageRequest is the body of POST /message.
type MessageRequest struct {
	Prompt string `json:"prompt"`
}

// HistoryResponse is returned by POST /message and GET /history.
type HistoryResponse struct {
	History []Turn `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Message handles POST /message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	history, err := h.service.SendMessage(r.Context(), sessionID, req.Prompt)
	switch {
	case err == nil:
		h.writeJSON(w, r, http.StatusOK, HistoryResponse{History: history})
	case errors.Is(err, ErrEmptyPrompt):
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
	case errors.Is(err, ErrCompletionFailed):
		h.writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "Sorry, I couldn't come up with an answer just now. Please try again."})
	default:
		logging.FromContext(r.Context(), h.logger).Error("failed to process message", "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "failed to process message"})
	}
}

// History handles GET /history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), sessionID)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to load history", "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "failed to load history"})
		return
	}
	h.writeJSON(w, r, http.StatusOK, HistoryResponse{History: history})
}

// Clear handles POST /clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.Clear(r.Context(), sessionID); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to clear session", "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "failed to clear history"})
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "missing session"})
	}
	return id, ok
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to write JSON response", "error", err)
	}
}

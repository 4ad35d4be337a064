// Package webchat serves the chat over a WebSocket for browser widgets that
// want a live connection instead of polling POST /message.
package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/spa-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/spa-concierge/internal/http/middleware"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	maxMessage = 8 << 10
)

// Chat is the conversation surface the socket drives.
type Chat interface {
	SendMessage(ctx context.Context, sessionID, prompt string) ([]conversation.Turn, error)
	History(ctx context.Context, sessionID string) ([]conversation.Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "clear", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what the widget receives.
type OutboundMessage struct {
	Type      string              `json:"type"` // "session", "history", "typing", "message", "cleared", "pong", "error"
	Text      string              `json:"text,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	History   []conversation.Turn `json:"history,omitempty"`
}

// Handler upgrades GET /ws and runs one turn per inbound message.
type Handler struct {
	chat           Chat
	logger         *logging.Logger
	allowedOrigins map[string]bool
	turnTimeout    time.Duration
	upgrader       websocket.Upgrader
}

// NewHandler builds a socket handler. An empty origin list accepts any origin.
func NewHandler(chat Chat, allowedOrigins []string, turnTimeout time.Duration, logger *logging.Logger) *Handler {
	if chat == nil {
		panic("webchat: chat cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if turnTimeout <= 0 {
		turnTimeout = 45 * time.Second
	}
	h := &Handler{
		chat:           chat,
		logger:         logger,
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
		turnTimeout:    turnTimeout,
	}
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			h.allowedOrigins[o] = true
		}
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 || h.allowedOrigins["*"] {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.allowedOrigins[origin]
}

// ServeHTTP expects the Session middleware to have resolved the session id.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := httpmiddleware.SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	logger := logging.FromContext(ctx, h.logger)

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := h.send(conn, OutboundMessage{Type: "session", SessionID: sessionID}); err != nil {
		return
	}
	if history, err := h.chat.History(ctx, sessionID); err != nil {
		logger.Error("webchat: failed to load history", "error", err)
	} else if len(history) > 0 {
		if err := h.send(conn, OutboundMessage{Type: "history", History: history}); err != nil {
			return
		}
	}

	logger.Info("webchat: connection opened")
	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("webchat: connection closed unexpectedly", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.dispatch(ctx, conn, sessionID, msg, logger); err != nil {
			return
		}
	}
}

// dispatch answers one inbound frame. Only write failures are returned.
func (h *Handler) dispatch(ctx context.Context, conn *websocket.Conn, sessionID string, msg InboundMessage, logger *logging.Logger) error {
	switch msg.Type {
	case "ping":
		return h.send(conn, OutboundMessage{Type: "pong"})
	case "clear":
		if err := h.chat.Clear(ctx, sessionID); err != nil {
			logger.Error("webchat: clear failed", "error", err)
			return h.send(conn, OutboundMessage{Type: "error", Text: "failed to clear history"})
		}
		return h.send(conn, OutboundMessage{Type: "cleared"})
	case "message", "":
	default:
		return h.send(conn, OutboundMessage{Type: "error", Text: "unknown message type"})
	}

	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	if err := h.send(conn, OutboundMessage{Type: "typing"}); err != nil {
		return err
	}

	turnCtx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	history, err := h.chat.SendMessage(turnCtx, sessionID, msg.Text)
	cancel()
	if err != nil {
		logger.Error("webchat: turn failed", "error", err)
		text := "Sorry, something went wrong. Please try again."
		if errors.Is(err, conversation.ErrEmptyPrompt) {
			text = "prompt is required"
		}
		return h.send(conn, OutboundMessage{Type: "error", Text: text})
	}
	return h.send(conn, OutboundMessage{Type: "message", Text: lastReply(history)})
}

func (h *Handler) send(conn *websocket.Conn, msg OutboundMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("webchat: write failed", "error", err)
		return err
	}
	return nil
}

func lastReply(history []conversation.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].IsUser {
			return history[i].Message
		}
	}
	return ""
}

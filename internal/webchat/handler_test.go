package webchat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/spa-concierge/internal/http/middleware"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

type fakeChat struct {
	mu       sync.Mutex
	sessions map[string][]conversation.Turn
	fail     error
}

func newFakeChat() *fakeChat {
	return &fakeChat{sessions: map[string][]conversation.Turn{}}
}

func (f *fakeChat) SendMessage(_ context.Context, sessionID, prompt string) ([]conversation.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.sessions[sessionID] = append(f.sessions[sessionID],
		conversation.Turn{Message: prompt, IsUser: true},
		conversation.Turn{Message: "echo: " + prompt},
	)
	return append([]conversation.Turn(nil), f.sessions[sessionID]...), nil
}

func (f *fakeChat) History(_ context.Context, sessionID string) ([]conversation.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.Turn(nil), f.sessions[sessionID]...), nil
}

func (f *fakeChat) Clear(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func newServer(t *testing.T, chat Chat, origins ...string) *httptest.Server {
	t.Helper()
	h := NewHandler(chat, origins, time.Second, logging.NewWithWriter("error", io.Discard))
	srv := httptest.NewServer(httpmiddleware.Session(httpmiddleware.SessionOptions{})(h))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string, header http.Header) *websocket.Conn {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set(httpmiddleware.SessionHeader, sessionID)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketTurn(t *testing.T) {
	srv := newServer(t, newFakeChat())
	conn := dial(t, srv, "session-ws-0001", nil)

	hello := read(t, conn)
	assert.Equal(t, "session", hello.Type)
	assert.Equal(t, "session-ws-0001", hello.SessionID)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hi"}))
	assert.Equal(t, "typing", read(t, conn).Type)
	reply := read(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "echo: hi", reply.Text)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)
}

func TestWebSocketSendsHistoryOnConnect(t *testing.T) {
	chat := newFakeChat()
	_, err := chat.SendMessage(context.Background(), "session-ws-0002", "earlier")
	require.NoError(t, err)

	conn := dial(t, newServer(t, chat), "session-ws-0002", nil)
	read(t, conn)
	history := read(t, conn)
	require.Equal(t, "history", history.Type)
	require.Len(t, history.History, 2)
	assert.Equal(t, "earlier", history.History[0].Message)
}

func TestWebSocketClear(t *testing.T) {
	chat := newFakeChat()
	conn := dial(t, newServer(t, chat), "session-ws-0003", nil)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hi"}))
	read(t, conn)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "clear"}))
	assert.Equal(t, "cleared", read(t, conn).Type)

	history, err := chat.History(context.Background(), "session-ws-0003")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWebSocketTurnFailure(t *testing.T) {
	chat := newFakeChat()
	chat.fail = errors.New("model down")
	conn := dial(t, newServer(t, chat), "session-ws-0004", nil)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hi"}))
	read(t, conn)
	msg := read(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Text)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv := newServer(t, newFakeChat(), "https://spa.example")
	header := http.Header{}
	header.Set(httpmiddleware.SessionHeader, "session-ws-0005")
	header.Set("Origin", "https://evil.example")

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role identifies the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prompt entry sent to a completion model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports what the provider billed for a call.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request describes a single completion call. Zero sampling values leave the
// provider default in place.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Response carries the assistant text returned by the provider.
type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is implemented by every completion provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// TimeoutClient bounds every call to the wrapped client.
type TimeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout wraps next so each Complete call is cancelled after timeout.
// A non-positive timeout returns next unchanged.
func WithTimeout(next Client, timeout time.Duration) Client {
	if next == nil {
		panic("llm: client cannot be nil")
	}
	if timeout <= 0 {
		return next
	}
	return &TimeoutClient{next: next, timeout: timeout}
}

func (c *TimeoutClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Complete(ctx, req)
}

// conversationTurns pulls system text out of messages and reshapes the rest
// into the strict user/assistant alternation Bedrock and Gemini require: the
// first turn is a user turn and consecutive same-role turns are merged.
// Blank messages are dropped.
func conversationTurns(messages []Message) ([]string, []Message) {
	var system []string
	var turns []Message
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch {
		case msg.Role == RoleSystem:
			system = append(system, content)
		case len(turns) == 0 && msg.Role == RoleAssistant:
			// A trimmed transcript can open on a reply whose question was dropped.
		case len(turns) > 0 && turns[len(turns)-1].Role == msg.Role:
			turns[len(turns)-1].Content += "\n\n" + content
		default:
			turns = append(turns, Message{Role: msg.Role, Content: content})
		}
	}
	return system, turns
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/spa-concierge/internal/booking"
	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/internal/tokens"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

var (
	// ErrCompletionFailed means the model could not answer; nothing was recorded.
	ErrCompletionFailed = errors.New("conversation: completion failed")
	// ErrEmptyPrompt is returned for a blank user message.
	ErrEmptyPrompt = errors.New("conversation: prompt is empty")
)

// Dialogue advances the booking overlay for one message.
type Dialogue interface {
	Handle(ctx context.Context, sessionID string, state *booking.State, msg string) booking.Outcome
}

// Config wires a Service.
type Config struct {
	Store      SessionStore
	Dialogue   Dialogue
	Classifier intent.Classifier
	Router     *Router
	LLM        llm.Client
	Counter    tokens.Counter

	SystemPrompt        string
	Model               string
	MaxPromptTokens     int
	MaxCompletionTokens int32
	CompletionTimeout   time.Duration

	Metrics *metrics.ConversationMetrics
	Logger  *logging.Logger
	Tracer  trace.Tracer
}

// Service is the turn orchestrator.
type Service struct {
	store      SessionStore
	dialogue   Dialogue
	classifier intent.Classifier
	router     *Router
	llm        llm.Client
	counter    tokens.Counter

	systemPrompt      string
	model             string
	maxPromptTokens   int
	maxOutputTokens   int32
	completionTimeout time.Duration

	locks   *keyedMutex
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

func NewService(cfg Config) *Service {
	switch {
	case cfg.Store == nil:
		panic("conversation: session store cannot be nil")
	case cfg.Dialogue == nil:
		panic("conversation: dialogue cannot be nil")
	case cfg.Classifier == nil:
		panic("conversation: classifier cannot be nil")
	case cfg.Router == nil:
		panic("conversation: router cannot be nil")
	case cfg.LLM == nil:
		panic("conversation: llm client cannot be nil")
	}
	if cfg.Counter == nil {
		cfg.Counter = tokens.ApproxCounter{}
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 3500
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("concierge.internal.conversation")
	}
	return &Service{
		store:             cfg.Store,
		dialogue:          cfg.Dialogue,
		classifier:        cfg.Classifier,
		router:            cfg.Router,
		llm:               cfg.LLM,
		counter:           cfg.Counter,
		systemPrompt:      cfg.SystemPrompt,
		model:             cfg.Model,
		maxPromptTokens:   cfg.MaxPromptTokens,
		maxOutputTokens:   cfg.MaxCompletionTokens,
		completionTimeout: cfg.CompletionTimeout,
		locks:             newKeyedMutex(),
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		tracer:            cfg.Tracer,
	}
}

// SendMessage runs one chat turn and returns the updated transcript. When the
// completion call fails nothing is persisted and the error wraps
// ErrCompletionFailed.
func (s *Service) SendMessage(ctx context.Context, sessionID, prompt string) ([]Turn, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	ctx, span := s.tracer.Start(ctx, "conversation.send_message")
	defer span.End()
	logger := logging.FromContext(ctx, s.logger)
	logger.Debug("turn received", "message", logging.RedactPII(prompt))

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	stored, err := s.store.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	state := stored.clone()
	state.History = append(state.History, Turn{Message: prompt, IsUser: true})

	if outcome := s.dialogue.Handle(ctx, sessionID, &state.State, prompt); outcome.Handled {
		s.metrics.ObserveTransition(outcome.From.String(), outcome.To.String())
		span.SetAttributes(attribute.String("conversation.route", "dialogue"))
		return s.finish(ctx, sessionID, state, outcome.Reply, "dialogue")
	}

	category := s.classifier.Classify(ctx, prompt)
	s.metrics.ObserveClassification(string(category))
	span.SetAttributes(attribute.String("conversation.category", string(category)))

	pending := s.router.Route(ctx, prompt, category)
	if pending.Terminal {
		return s.finish(ctx, sessionID, state, pending.Message.Content, "local")
	}

	messages := s.buildPrompt(stored.History, pending.Message)
	fitted := tokens.Fit(messages, s.maxPromptTokens, s.counter)
	if dropped := len(messages) - len(fitted); dropped > 0 {
		s.metrics.ObserveDroppedMessages(dropped)
		logger.Debug("trimmed prompt to token budget", "dropped", dropped, "limit", s.maxPromptTokens)
	}

	reply, err := s.complete(ctx, fitted)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveTurn("completion_failed")
		logger.Error("completion failed", "category", string(category), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	return s.finish(ctx, sessionID, state, reply, "completion")
}

// History returns the session transcript, empty for an unknown session.
func (s *Service) History(ctx context.Context, sessionID string) ([]Turn, error) {
	state, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.History == nil {
		return []Turn{}, nil
	}
	return state.History, nil
}

// Clear forgets the transcript and any booking in progress.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.store.Clear(ctx, sessionID)
}

// buildPrompt lays out the system message, the prior transcript and the routed
// form of the current message.
func (s *Service) buildPrompt(prior []Turn, pending llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(prior)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	for _, turn := range prior {
		role := llm.RoleAssistant
		if turn.IsUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Message})
	}
	return append(messages, pending)
}

func (s *Service) complete(ctx context.Context, messages []llm.Message) (string, error) {
	if s.completionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.completionTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:     s.model,
		Messages:  messages,
		MaxTokens: s.maxOutputTokens,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveCompletion(status, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Text, nil
}

func (s *Service) finish(ctx context.Context, sessionID string, state *State, reply, outcome string) ([]Turn, error) {
	state.History = append(state.History, Turn{Message: reply})
	if err := s.store.Set(ctx, sessionID, state); err != nil {
		return nil, err
	}
	s.metrics.ObserveTurn(outcome)
	return state.History, nil
}

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore persists session state. Get returns an empty State for an
// unknown session.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Set(ctx context.Context, sessionID string, state *State) error
	Clear(ctx context.Context, sessionID string) error
}

// RedisSessionStore keeps each session as one JSON blob with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("concierge.internal.conversation.store")
	}
	return &RedisSessionStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &State{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, sessionID string, state *State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.clear_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to clear session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("concierge:session:%s", id)
}

// MemorySessionStore keeps sessions in process. Entries never expire.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*State)}
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return &State{}, nil
	}
	return state.clone(), nil
}

func (s *MemorySessionStore) Set(_ context.Context, sessionID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = state.clone()
	return nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

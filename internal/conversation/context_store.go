package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionState is the persisted slice of a conversation: rolling history,
// handler metadata, and handoff status. The full Context is rebuilt from it
// per request.
type SessionState struct {
	History      []Turn            `json:"history,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Handoff      bool              `json:"handoff,omitempty"`
	MessageCount int               `json:"message_count"`
	FirstSeen    time.Time         `json:"first_seen"`
}

// ContextStore keeps session state in Redis with a sliding TTL. A session
// that goes quiet simply expires; there is no explicit close.
type ContextStore struct {
	client       *redis.Client
	ttl          time.Duration
	historyLimit int
	tracer       trace.Tracer
}

// NewContextStore creates a store. ttl bounds session lifetime between
// messages; historyLimit caps the turns retained per session.
func NewContextStore(client *redis.Client, ttl time.Duration, historyLimit int) *ContextStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &ContextStore{
		client:       client,
		ttl:          ttl,
		historyLimit: historyLimit,
		tracer:       otel.Tracer("shopchat/conversation"),
	}
}

func sessionKey(merchantID, senderKey string) string {
	return fmt.Sprintf("ctx:%s:%s", merchantID, senderKey)
}

// Load returns the session state and whether it already existed. A missing
// or corrupt record yields a fresh state, never an error the pipeline has to
// branch on.
func (s *ContextStore) Load(ctx context.Context, merchantID, senderKey string) (*SessionState, bool, error) {
	ctx, span := s.tracer.Start(ctx, "context_store.load",
		trace.WithAttributes(attribute.String("merchant.id", merchantID)))
	defer span.End()

	raw, err := s.client.Get(ctx, sessionKey(merchantID, senderKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.fresh(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("conversation: load session: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt blob is unrecoverable; start over rather than failing
		// every subsequent message in the session.
		return s.fresh(), false, nil
	}
	if state.Metadata == nil {
		state.Metadata = make(map[string]string)
	}
	return &state, true, nil
}

func (s *ContextStore) fresh() *SessionState {
	return &SessionState{
		Metadata:  make(map[string]string),
		FirstSeen: time.Now().UTC(),
	}
}

// Save writes the state back and resets the TTL. History is trimmed to the
// store's limit before writing.
func (s *ContextStore) Save(ctx context.Context, merchantID, senderKey string, state *SessionState) error {
	ctx, span := s.tracer.Start(ctx, "context_store.save",
		trace.WithAttributes(attribute.String("merchant.id", merchantID)))
	defer span.End()

	if len(state.History) > s.historyLimit {
		state.History = state.History[len(state.History)-s.historyLimit:]
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(merchantID, senderKey), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}

// MarkHandoff flips the session into human-handling mode in place.
func (s *ContextStore) MarkHandoff(ctx context.Context, merchantID, senderKey string) error {
	state, _, err := s.Load(ctx, merchantID, senderKey)
	if err != nil {
		return err
	}
	state.Handoff = true
	return s.Save(ctx, merchantID, senderKey, state)
}

// ResumeBot ends a handoff so the assistant answers again.
func (s *ContextStore) ResumeBot(ctx context.Context, merchantID, senderKey string) error {
	state, existed, err := s.Load(ctx, merchantID, senderKey)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	state.Handoff = false
	return s.Save(ctx, merchantID, senderKey, state)
}

// Clear removes the session entirely.
func (s *ContextStore) Clear(ctx context.Context, merchantID, senderKey string) error {
	ctx, span := s.tracer.Start(ctx, "context_store.clear",
		trace.WithAttributes(attribute.String("merchant.id", merchantID)))
	defer span.End()

	if err := s.client.Del(ctx, sessionKey(merchantID, senderKey)).Err(); err != nil {
		return fmt.Errorf("conversation: clear session: %w", err)
	}
	return nil
}

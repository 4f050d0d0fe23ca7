package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StateIdle          = ""
	StateAwaitingEmail = "awaiting_email"
)

// Session is the per-chat conversation state. It survives bot restarts
// because it lives in Redis, not process memory.
type Session struct {
	State   string `json:"state"`
	PlanKey string `json:"plan_key,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// SessionStore keeps chat sessions in Redis under botstate:<chatID> with a
// sliding TTL, so abandoned conversations clean themselves up.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("botstate:%d", chatID)
}

// Get returns the stored session, or an idle one when nothing is stored or
// Redis is unreachable.
func (s *SessionStore) Get(ctx context.Context, chatID int64) *Session {
	raw, err := s.rdb.Get(ctx, sessionKey(chatID)).Result()
	if err != nil {
		return &Session{State: StateIdle}
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return &Session{State: StateIdle}
	}
	return &session
}

func (s *SessionStore) Set(ctx context.Context, chatID int64, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(chatID), raw, s.ttl).Err()
}

func (s *SessionStore) Clear(ctx context.Context, chatID int64) error {
	err := s.rdb.Del(ctx, sessionKey(chatID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

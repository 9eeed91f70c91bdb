package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StepDecide     = "decide"
	StepPickDriver = "pick_driver"
	StepPickTruck  = "pick_truck"
	StepConfirm    = "confirm"
)

// Session is the per-order state of the dispatch wizard. It lives server
// side; callback data carries only the session id.
type Session struct {
	OrderID        string `json:"order_id"`
	SequenceNumber int64  `json:"sequence_number"`
	Step           string `json:"step"`
	DriverID       int64  `json:"driver_id"`
	TruckID        int64  `json:"truck_id"`
	ChatID         int64  `json:"chat_id"`
	MessageID      int64  `json:"message_id"`
}

type SessionStore interface {
	Put(ctx context.Context, id string, session Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// NewSessionID returns an opaque id short enough to fit callback data
// together with a verb prefix and a numeric argument.
func NewSessionID() string {
	return uuid.NewString()
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "dispatch:session:" + id
}

func (s *RedisStore) Put(ctx context.Context, id string, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

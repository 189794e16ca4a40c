package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store mirrors online status and last-seen timestamps into Redis so the
// REST side can answer presence queries without touching the engine.
// Keys: <prefix>:presence:<userID> -> {"status","last_seen"}.
type Store struct {
	client *redis.Client
	prefix string
}

type presenceDoc struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *Store) set(ctx context.Context, userID, status string) error {
	if s == nil || s.client == nil {
		return nil
	}
	b, _ := json.Marshal(presenceDoc{Status: status, LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), b, 0).Err()
}

func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, "online")
}

func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, "offline")
}

// Get returns the mirrored presence document, or redis.Nil when the user has
// never connected.
func (s *Store) Get(ctx context.Context, userID string) (map[string]any, error) {
	if s == nil || s.client == nil {
		return nil, redis.Nil
	}
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

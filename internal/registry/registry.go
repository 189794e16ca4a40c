package registry

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/metrics"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Registry maps a user id to its single live connection. A later connection
// replaces — never queues behind — an earlier one for the same user.
// It is also the production Emitter: every targeted broadcast in the engine
// bottoms out in LookupMany here.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Register installs c as the user's connection, closing any prior one
// (last-writer-wins; no multi-device fan-out).
func (r *Registry) Register(userID string, c *Client) {
	r.mu.Lock()
	old := r.clients[userID]
	r.clients[userID] = c
	r.mu.Unlock()

	if old != nil && old != c {
		old.Close()
	} else {
		metrics.ConnectionsActive.Inc()
	}
}

// Unregister removes the user's entry only if c is still the current
// connection, so a stale read loop exiting after a replacement cannot evict
// the replacement. It reports whether the entry was actually removed;
// callers use that to tell a real disconnect from a stale one.
func (r *Registry) Unregister(userID string, c *Client) bool {
	r.mu.Lock()
	cur, ok := r.clients[userID]
	removed := ok && cur == c
	if removed {
		delete(r.clients, userID)
	}
	r.mu.Unlock()
	if removed {
		metrics.ConnectionsActive.Dec()
	}
	return removed
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// LookupMany resolves the live connections of the listed users. Absent
// entries are silently dropped: an offline recipient is never an error.
func (r *Registry) LookupMany(userIDs []string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(userIDs))
	for _, id := range userIDs {
		if c, ok := r.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) marshal(event string, payload any) ([]byte, bool) {
	b, err := json.Marshal(envelope{Type: event, Payload: payload})
	if err != nil {
		r.log.Errorw("marshal outbound event", "event", event, "err", err)
		return nil, false
	}
	return b, true
}

// EmitToUsers implements events.Emitter with targeted delivery.
func (r *Registry) EmitToUsers(userIDs []string, event string, payload any) {
	b, ok := r.marshal(event, payload)
	if !ok {
		return
	}
	for _, c := range r.LookupMany(userIDs) {
		c.enqueue(b)
	}
	metrics.EventsEmitted.WithLabelValues(event).Inc()
}

// Broadcast implements events.Emitter for global information such as the
// online set and full poll state.
func (r *Registry) Broadcast(event string, payload any) {
	b, ok := r.marshal(event, payload)
	if !ok {
		return
	}
	r.mu.RLock()
	for _, c := range r.clients {
		c.enqueue(b)
	}
	r.mu.RUnlock()
	metrics.EventsEmitted.WithLabelValues(event).Inc()
}

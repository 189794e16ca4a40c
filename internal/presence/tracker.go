package presence

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/registry"
)

// connectionTable is the slice of the registry the tracker drives during
// disconnect cleanup.
type connectionTable interface {
	Unregister(userID string, c *registry.Client) bool
}

// Tracker owns the global online set and the userID -> chatID "currently
// viewing" map. Both are process-wide state behind one mutex; presence is
// broadcast globally because any member of any chat may need it.
type Tracker struct {
	mu      sync.Mutex
	online  map[string]struct{}
	viewing map[string]string

	conns   connectionTable
	emitter events.Emitter
	store   *Store
	log     *zap.SugaredLogger
}

func NewTracker(conns connectionTable, emitter events.Emitter, store *Store, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		online:  make(map[string]struct{}),
		viewing: make(map[string]string),
		conns:   conns,
		emitter: emitter,
		store:   store,
		log:     log,
	}
}

// Connected adds the user to the online set (idempotent) and broadcasts the
// full set. The Redis mirror is best effort.
func (t *Tracker) Connected(ctx context.Context, userID string) {
	t.mu.Lock()
	t.online[userID] = struct{}{}
	users := t.onlineLocked()
	t.mu.Unlock()

	if err := t.store.SetOnline(ctx, userID); err != nil {
		t.log.Warnw("presence mirror set online", "user_id", userID, "err", err)
	}
	t.emitter.Broadcast(events.EventOnlineUsers, events.OnlineUsersEvent{Users: users})
}

// ChatJoined records which chat the user is actively viewing (overwriting any
// prior entry) and rebroadcasts the full presence map.
func (t *Tracker) ChatJoined(userID, chatID string) {
	t.mu.Lock()
	t.viewing[userID] = chatID
	snapshot := t.viewingLocked()
	t.mu.Unlock()

	t.emitter.Broadcast(events.EventChatOnlineUsers, events.ChatOnlineUsersEvent{
		ChatID:  chatID,
		Members: snapshot,
	})
}

func (t *Tracker) ChatLeft(userID, chatID string) {
	t.mu.Lock()
	delete(t.viewing, userID)
	snapshot := t.viewingLocked()
	t.mu.Unlock()

	t.emitter.Broadcast(events.EventChatOnlineUsers, events.ChatOnlineUsersEvent{
		ChatID:  chatID,
		Members: snapshot,
	})
}

// Disconnected removes the user from the connection registry, the online set
// and the viewing map before broadcasting either update, so no observer can
// see the user in only some of the three. The registry removal is a
// check-and-remove: when the closing client lost a last-writer-wins
// replacement race, the user has already reconnected and presence must stay
// exactly as the replacement left it.
func (t *Tracker) Disconnected(ctx context.Context, userID string, c *registry.Client) {
	if !t.conns.Unregister(userID, c) {
		return
	}

	t.mu.Lock()
	delete(t.online, userID)
	delete(t.viewing, userID)
	users := t.onlineLocked()
	snapshot := t.viewingLocked()
	t.mu.Unlock()

	if err := t.store.SetOffline(ctx, userID); err != nil {
		t.log.Warnw("presence mirror set offline", "user_id", userID, "err", err)
	}
	t.emitter.Broadcast(events.EventOnlineUsers, events.OnlineUsersEvent{Users: users})
	t.emitter.Broadcast(events.EventChatOnlineUsers, events.ChatOnlineUsersEvent{Members: snapshot})
}

// OnlineUsers returns the current online set, sorted for stable payloads.
func (t *Tracker) OnlineUsers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onlineLocked()
}

// Viewing returns a copy of the chat presence map.
func (t *Tracker) Viewing() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewingLocked()
}

func (t *Tracker) onlineLocked() []string {
	users := make([]string, 0, len(t.online))
	for id := range t.online {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (t *Tracker) viewingLocked() map[string]string {
	snapshot := make(map[string]string, len(t.viewing))
	for id, chat := range t.viewing {
		snapshot[id] = chat
	}
	return snapshot
}

package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/logger"
	"github.com/nik2168/nox-chat-backend/internal/registry"
)

type emission struct {
	event   string
	payload any
}

type recordingEmitter struct {
	mu         sync.Mutex
	broadcasts []emission
}

func (e *recordingEmitter) EmitToUsers(userIDs []string, event string, payload any) {}

func (e *recordingEmitter) Broadcast(event string, payload any) {
	e.mu.Lock()
	e.broadcasts = append(e.broadcasts, emission{event: event, payload: payload})
	e.mu.Unlock()
}

func (e *recordingEmitter) broadcastCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.broadcasts)
}

func (e *recordingEmitter) lastBroadcast(event string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.broadcasts) - 1; i >= 0; i-- {
		if e.broadcasts[i].event == event {
			return e.broadcasts[i].payload, true
		}
	}
	return nil, false
}

type nopConn struct{}

func (nopConn) WriteMessage(int, []byte) error   { return nil }
func (nopConn) SetWriteDeadline(time.Time) error { return nil }
func (nopConn) Close() error                     { return nil }

func newTestTracker(t *testing.T) (*Tracker, *registry.Registry, *recordingEmitter) {
	t.Helper()
	reg := registry.New(logger.Nop())
	em := &recordingEmitter{}
	return NewTracker(reg, em, nil, logger.Nop()), reg, em
}

func connect(tr *Tracker, reg *registry.Registry, userID string) *registry.Client {
	c := registry.NewClient(nopConn{}, userID, userID)
	reg.Register(userID, c)
	tr.Connected(context.Background(), userID)
	return c
}

func TestOnlineSetMatchesLastEventPerUser(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	ctx := context.Background()

	cA := connect(tr, reg, "a")
	connect(tr, reg, "b")
	cC := connect(tr, reg, "c")
	tr.Disconnected(ctx, "a", cA)
	connect(tr, reg, "a")
	tr.Disconnected(ctx, "c", cC)

	assert.Equal(t, []string{"a", "b"}, tr.OnlineUsers())
}

func TestConnectedIsIdempotent(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	connect(tr, reg, "a")
	tr.Connected(context.Background(), "a")
	assert.Equal(t, []string{"a"}, tr.OnlineUsers())
}

func TestConnectBroadcastsFullOnlineSet(t *testing.T) {
	tr, reg, em := newTestTracker(t)
	connect(tr, reg, "a")
	connect(tr, reg, "b")

	payload, ok := em.lastBroadcast(events.EventOnlineUsers)
	require.True(t, ok)
	assert.Equal(t, events.OnlineUsersEvent{Users: []string{"a", "b"}}, payload)
}

func TestChatJoinedOverwritesAndBroadcasts(t *testing.T) {
	tr, reg, em := newTestTracker(t)
	connect(tr, reg, "a")

	tr.ChatJoined("a", "chat-1")
	tr.ChatJoined("a", "chat-2") // switching chats overwrites, never duplicates

	assert.Equal(t, map[string]string{"a": "chat-2"}, tr.Viewing())

	payload, ok := em.lastBroadcast(events.EventChatOnlineUsers)
	require.True(t, ok)
	ev := payload.(events.ChatOnlineUsersEvent)
	assert.Equal(t, "chat-2", ev.ChatID)
	assert.Equal(t, map[string]string{"a": "chat-2"}, ev.Members)
}

func TestChatLeftRemovesEntry(t *testing.T) {
	tr, reg, _ := newTestTracker(t)
	connect(tr, reg, "a")
	connect(tr, reg, "b")
	tr.ChatJoined("a", "chat-1")
	tr.ChatJoined("b", "chat-1")

	tr.ChatLeft("a", "chat-1")
	assert.Equal(t, map[string]string{"b": "chat-1"}, tr.Viewing())
}

func TestDisconnectRemovesFromAllThreeBeforeBroadcast(t *testing.T) {
	tr, reg, em := newTestTracker(t)
	cA := connect(tr, reg, "a")
	connect(tr, reg, "b")
	tr.ChatJoined("a", "chat-1")

	tr.Disconnected(context.Background(), "a", cA)

	assert.Equal(t, []string{"b"}, tr.OnlineUsers())
	assert.Empty(t, tr.Viewing())
	_, ok := reg.Lookup("a")
	assert.False(t, ok)

	// broadcasts taken after all removals must not contain the user
	online, ok := em.lastBroadcast(events.EventOnlineUsers)
	require.True(t, ok)
	assert.NotContains(t, online.(events.OnlineUsersEvent).Users, "a")

	viewing, ok := em.lastBroadcast(events.EventChatOnlineUsers)
	require.True(t, ok)
	assert.NotContains(t, viewing.(events.ChatOnlineUsersEvent).Members, "a")
}

func TestStaleDisconnectAfterReconnectKeepsUserOnline(t *testing.T) {
	tr, reg, em := newTestTracker(t)

	c1 := connect(tr, reg, "a")
	tr.ChatJoined("a", "chat-1")
	c2 := connect(tr, reg, "a") // reconnect replaces c1
	tr.ChatJoined("a", "chat-1")
	before := em.broadcastCount()

	// c1's read loop exits after the replacement already took over
	tr.Disconnected(context.Background(), "a", c1)

	cur, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Same(t, c2, cur)
	assert.Equal(t, []string{"a"}, tr.OnlineUsers())
	assert.Equal(t, map[string]string{"a": "chat-1"}, tr.Viewing())

	// nothing offline-looking went out for the stale client
	assert.Equal(t, before, em.broadcastCount())
	online, ok := em.lastBroadcast(events.EventOnlineUsers)
	require.True(t, ok)
	assert.Contains(t, online.(events.OnlineUsersEvent).Users, "a")
}

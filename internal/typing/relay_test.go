package typing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nik2168/nox-chat-backend/internal/events"
)

type emission struct {
	users   []string
	event   string
	payload any
}

type recordingEmitter struct {
	mu       sync.Mutex
	targeted []emission
}

func (e *recordingEmitter) EmitToUsers(userIDs []string, event string, payload any) {
	e.mu.Lock()
	e.targeted = append(e.targeted, emission{users: userIDs, event: event, payload: payload})
	e.mu.Unlock()
}

func (e *recordingEmitter) Broadcast(event string, payload any) {}

func TestStartTypingRelaysToMembers(t *testing.T) {
	em := &recordingEmitter{}
	r := NewRelay(em)

	r.StartTyping("chat-1", "alice", []string{"b", "c"})

	require.Len(t, em.targeted, 1)
	got := em.targeted[0]
	assert.Equal(t, events.EventStartTyping, got.event)
	assert.Equal(t, []string{"b", "c"}, got.users)
	assert.Equal(t, events.TypingEvent{ChatID: "chat-1", Username: "alice"}, got.payload)
}

func TestStopTypingRelaysToMembers(t *testing.T) {
	em := &recordingEmitter{}
	r := NewRelay(em)

	r.StopTyping("chat-1", "alice", []string{"b"})

	require.Len(t, em.targeted, 1)
	assert.Equal(t, events.EventStopTyping, em.targeted[0].event)
	assert.Equal(t, []string{"b"}, em.targeted[0].users)
}

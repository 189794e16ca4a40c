package typing

import (
	"github.com/nik2168/nox-chat-backend/internal/events"
)

// Relay forwards start/stop typing notifications to a chat's member list.
// It keeps no state and makes no ordering promise: a stop that overtakes its
// start is delivered as-is and the client's last event wins.
type Relay struct {
	emitter events.Emitter
}

func NewRelay(emitter events.Emitter) *Relay {
	return &Relay{emitter: emitter}
}

// StartTyping relays to the listed members. Callers trim the acting user
// from the list if they do not want the echo.
func (r *Relay) StartTyping(chatID, username string, memberIDs []string) {
	r.emitter.EmitToUsers(memberIDs, events.EventStartTyping, events.TypingEvent{
		ChatID:   chatID,
		Username: username,
	})
}

func (r *Relay) StopTyping(chatID, username string, memberIDs []string) {
	r.emitter.EmitToUsers(memberIDs, events.EventStopTyping, events.TypingEvent{
		ChatID:   chatID,
		Username: username,
	})
}

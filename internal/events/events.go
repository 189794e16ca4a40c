package events

import (
	"encoding/json"

	"github.com/nik2168/nox-chat-backend/internal/model"
)

// Inbound and outbound websocket event names.
const (
	EventNewMessage      = "new-message"
	EventNewMessageAlert = "new-message-alert"
	EventUpdatePoll      = "update-poll"
	EventScheduleMessage = "schedule-message"
	EventStartTyping     = "start-typing"
	EventStopTyping      = "stop-typing"
	EventChatJoined      = "chat-joined"
	EventChatLeave       = "chat-leave"
	EventOnlineUsers     = "online-users"
	EventChatOnlineUsers = "chat-online-users"
	EventError           = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Emitter is the outbound fan-out contract. The connection registry is the
// production implementation; tests substitute a recorder.
type Emitter interface {
	// EmitToUsers delivers to the live connections of the listed users.
	// Users without a connection are silently skipped.
	EmitToUsers(userIDs []string, event string, payload any)
	// Broadcast delivers to every live connection.
	Broadcast(event string, payload any)
}

// Inbound payloads.

type NewMessagePayload struct {
	Content      string             `json:"content"`
	ChatID       string             `json:"chat_id"`
	RecipientIDs []string           `json:"recipient_ids"`
	MemberIDs    []string           `json:"member_ids,omitempty"` // alert audience; defaults to recipients
	Attachments  []model.Attachment `json:"attachments,omitempty"`
	PollOptions  []string           `json:"poll_options,omitempty"`
}

type ScheduleMessagePayload struct {
	NewMessagePayload
	DelayMinutes int `json:"delay_minutes"`
}

type UpdatePollPayload struct {
	TempID    string `json:"temp_id"`
	OptionIdx int    `json:"option_idx"`
	ChatID    string `json:"chat_id"`
}

type TypingPayload struct {
	ChatID       string   `json:"chat_id"`
	Username     string   `json:"username"`
	RecipientIDs []string `json:"recipient_ids"`
}

type ChatPresencePayload struct {
	ChatID    string   `json:"chat_id"`
	MemberIDs []string `json:"member_ids"`
}

// Outbound payloads.

type NewMessageEvent struct {
	ChatID  string                 `json:"chat_id"`
	Message *model.RealtimeMessage `json:"message"`
}

type NewMessageAlertEvent struct {
	ChatID  string                 `json:"chat_id"`
	Message *model.RealtimeMessage `json:"message"`
	Members []string               `json:"members"`
}

type OnlineUsersEvent struct {
	Users []string `json:"users"`
}

// ChatOnlineUsersEvent carries the full userID -> chatID presence map; any
// member of any chat may need to know who else is viewing theirs.
type ChatOnlineUsersEvent struct {
	ChatID  string            `json:"chat_id,omitempty"`
	Members map[string]string `json:"chat_online_members"`
}

type UpdatePollEvent struct {
	TempID  string             `json:"temp_id"`
	ChatID  string             `json:"chat_id"`
	VoterID string             `json:"voter_id"`
	Options []model.PollOption `json:"options"`
}

type TypingEvent struct {
	ChatID   string `json:"chat_id"`
	Username string `json:"username,omitempty"`
}

type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/dispatch"
	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/metrics"
	"github.com/nik2168/nox-chat-backend/internal/model"
	"github.com/nik2168/nox-chat-backend/internal/poll"
	"github.com/nik2168/nox-chat-backend/internal/presence"
	"github.com/nik2168/nox-chat-backend/internal/typing"
)

// Router maps each inbound event type to exactly one handler. It is
// transport-free: the acting user is already authenticated and rejections go
// back as error events through the emitter, so the whole state machine is
// exercisable without a live websocket.
type Router struct {
	presence   *presence.Tracker
	typing     *typing.Relay
	dispatcher *dispatch.Dispatcher
	scheduler  *dispatch.Scheduler
	polls      *poll.Coordinator
	emitter    events.Emitter
	log        *zap.SugaredLogger
}

func NewRouter(
	tracker *presence.Tracker,
	relay *typing.Relay,
	dispatcher *dispatch.Dispatcher,
	scheduler *dispatch.Scheduler,
	polls *poll.Coordinator,
	emitter events.Emitter,
	log *zap.SugaredLogger,
) *Router {
	return &Router{
		presence:   tracker,
		typing:     relay,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		polls:      polls,
		emitter:    emitter,
		log:        log,
	}
}

// HandleEvent routes one inbound frame from user. Errors never propagate to
// the read loop; a failing message must not take down the connection or
// presence tracking for anyone else.
func (r *Router) HandleEvent(ctx context.Context, user model.UserSummary, data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.reject(user.ID, "", "malformed event envelope")
		return
	}
	metrics.EventsReceived.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case events.EventNewMessage:
		var p events.NewMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		if _, err := r.dispatcher.Send(ctx, sendInput(user, p)); err != nil {
			r.log.Warnw("dispatch message", "user_id", user.ID, "chat_id", p.ChatID, "err", err)
			r.reject(user.ID, env.Type, err.Error())
		}

	case events.EventScheduleMessage:
		var p events.ScheduleMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		if p.DelayMinutes < 0 {
			r.reject(user.ID, env.Type, "delay must not be negative")
			return
		}
		r.scheduler.Schedule(sendInput(user, p.NewMessagePayload),
			time.Duration(p.DelayMinutes)*time.Minute)

	case events.EventUpdatePoll:
		var p events.UpdatePollPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		if _, err := r.polls.Vote(ctx, p.TempID, p.OptionIdx, user); err != nil {
			r.log.Warnw("poll vote", "user_id", user.ID, "temp_id", p.TempID, "err", err)
			r.reject(user.ID, env.Type, err.Error())
		}

	case events.EventStartTyping:
		var p events.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		r.typing.StartTyping(p.ChatID, p.Username, p.RecipientIDs)

	case events.EventStopTyping:
		var p events.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		r.typing.StopTyping(p.ChatID, p.Username, p.RecipientIDs)

	case events.EventChatJoined:
		var p events.ChatPresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		r.presence.ChatJoined(user.ID, p.ChatID)

	case events.EventChatLeave:
		var p events.ChatPresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.reject(user.ID, env.Type, "malformed payload")
			return
		}
		r.presence.ChatLeft(user.ID, p.ChatID)

	default:
		r.reject(user.ID, env.Type, "unknown event type")
	}
}

func (r *Router) reject(userID, event, reason string) {
	r.emitter.EmitToUsers([]string{userID}, events.EventError, events.ErrorEvent{
		Event:   event,
		Message: reason,
	})
}

func sendInput(user model.UserSummary, p events.NewMessagePayload) dispatch.SendInput {
	return dispatch.SendInput{
		Content:      p.Content,
		ChatID:       p.ChatID,
		Sender:       user,
		RecipientIDs: p.RecipientIDs,
		MemberIDs:    p.MemberIDs,
		Attachments:  p.Attachments,
		PollOptions:  p.PollOptions,
	}
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/metrics"
	"github.com/nik2168/nox-chat-backend/internal/model"
)

// ErrNotMember rejects a send whose sender is not in the supplied member
// list, before any write or broadcast.
var ErrNotMember = errors.New("sender is not a member of the chat")

// MessageStore is the durable-store slice the dispatcher needs.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *model.Message) (*model.Message, error)
}

// EventProducer publishes the message.sent domain event.
type EventProducer interface {
	PublishMessageSent(ctx context.Context, key string, payload any) error
}

// AlertPublisher feeds the notification pipeline.
type AlertPublisher interface {
	PublishMessageAlert(ev events.MessageAlertEvent) error
}

// SendInput is one fully-specified send: content plus the two target sets.
// MemberIDs is the alert audience and may be broader than RecipientIDs; when
// empty it defaults to the recipients.
type SendInput struct {
	Content      string
	ChatID       string
	Sender       model.UserSummary
	RecipientIDs []string
	MemberIDs    []string
	Attachments  []model.Attachment
	PollOptions  []string
}

func (in SendInput) alertAudience() []string {
	if len(in.MemberIDs) > 0 {
		return in.MemberIDs
	}
	return in.RecipientIDs
}

// Dispatcher persists a message and fans it out to the live connections of
// its recipients. The durable write is the source of truth: events are
// emitted only after it succeeds, and a failed write rejects the whole send.
type Dispatcher struct {
	store    MessageStore
	emitter  events.Emitter
	producer EventProducer
	alerts   AlertPublisher
	log      *zap.SugaredLogger
}

func NewDispatcher(store MessageStore, emitter events.Emitter, producer EventProducer, alerts AlertPublisher, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		emitter:  emitter,
		producer: producer,
		alerts:   alerts,
		log:      log,
	}
}

func (d *Dispatcher) Send(ctx context.Context, in SendInput) (*model.RealtimeMessage, error) {
	members := in.alertAudience()
	if !contains(members, in.Sender.ID) {
		return nil, ErrNotMember
	}

	tempID := uuid.NewString()
	now := time.Now().UTC()
	attachments := in.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}

	msg := &model.Message{
		TempID:      tempID,
		ChatID:      in.ChatID,
		SenderID:    in.Sender.ID,
		Content:     in.Content,
		Attachments: attachments,
		CreatedAt:   now,
	}
	if len(in.PollOptions) > 0 {
		msg.IsPoll = true
		msg.Options = make([]model.PollOption, len(in.PollOptions))
		for i, text := range in.PollOptions {
			msg.Options[i] = model.PollOption{Text: text, Members: []model.UserSummary{}}
		}
	}

	stored, err := d.store.InsertMessage(ctx, msg)
	if err != nil {
		metrics.PersistFailures.Inc()
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesPersisted.Inc()

	rt := &model.RealtimeMessage{
		ID:          stored.ID.Hex(),
		TempID:      tempID,
		ChatID:      in.ChatID,
		Content:     in.Content,
		Attachments: attachments,
		IsPoll:      msg.IsPoll,
		Options:     msg.Options,
		Sender:      in.Sender,
		CreatedAt:   now,
	}

	// Downstream publishes are fire-and-forget; a broken broker must not
	// break delivery to live connections.
	if d.producer != nil {
		if err := d.producer.PublishMessageSent(ctx, in.ChatID, rt); err != nil {
			d.log.Warnw("publish message.sent", "chat_id", in.ChatID, "err", err)
		}
	}
	if d.alerts != nil {
		err := d.alerts.PublishMessageAlert(events.MessageAlertEvent{
			ChatID:    in.ChatID,
			TempID:    tempID,
			SenderID:  in.Sender.ID,
			MemberIDs: members,
		})
		if err != nil {
			d.log.Warnw("publish message.alert", "chat_id", in.ChatID, "err", err)
		}
	}

	d.emitter.EmitToUsers(in.RecipientIDs, events.EventNewMessage, events.NewMessageEvent{
		ChatID:  in.ChatID,
		Message: rt,
	})
	d.emitter.EmitToUsers(members, events.EventNewMessageAlert, events.NewMessageAlertEvent{
		ChatID:  in.ChatID,
		Message: rt,
		Members: members,
	})
	return rt, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

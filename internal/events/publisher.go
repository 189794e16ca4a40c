package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// MessageAlertEvent feeds the notification pipeline: enough to update unread
// badges without the full message body.
type MessageAlertEvent struct {
	ChatID    string   `json:"chat_id"`
	TempID    string   `json:"temp_id"`
	SenderID  string   `json:"sender_id"`
	MemberIDs []string `json:"member_ids"`
}

// AlertPublisher pushes alert events onto NATS. A nil publisher (NATS not
// configured) is valid and publishes nothing.
type AlertPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewAlertPublisher(url, subject string) (*AlertPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &AlertPublisher{nc: nc, subject: subject}, nil
}

func (p *AlertPublisher) PublishMessageAlert(ev MessageAlertEvent) error {
	if p == nil || p.nc == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, b)
}

func (p *AlertPublisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}

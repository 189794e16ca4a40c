package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSummary is the lightweight sender/voter projection embedded in
// real-time payloads and poll voter lists.
type UserSummary struct {
	ID   string `bson:"_id" json:"_id"`
	Name string `bson:"name" json:"name"`
}

type Attachment struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

// PollOption holds one choice of a poll message. A voter appears in at most
// one option's member list at any time; that invariant is enforced by the
// vote toggle, never by the storage layer.
type PollOption struct {
	Text    string        `bson:"text" json:"text"`
	Members []UserSummary `bson:"members" json:"members"`
}

type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TempID      string             `bson:"temp_id" json:"temp_id"`
	ChatID      string             `bson:"chat_id" json:"chat_id"`
	SenderID    string             `bson:"sender_id" json:"sender_id"`
	Content     string             `bson:"content" json:"content"`
	Attachments []Attachment       `bson:"attachments" json:"attachments"`
	IsAlert     bool               `bson:"is_alert" json:"is_alert"`
	IsPoll      bool               `bson:"is_poll" json:"is_poll"`
	Options     []PollOption       `bson:"options,omitempty" json:"options,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// RealtimeMessage is the transient representation pushed to live connections.
// TempID correlates it with the durable record so clients (and the poll
// coordinator) can locate the message without knowing its Mongo id.
type RealtimeMessage struct {
	ID          string       `json:"_id"`
	TempID      string       `json:"temp_id"`
	ChatID      string       `json:"chat_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	IsPoll      bool         `json:"is_poll"`
	Options     []PollOption `json:"options,omitempty"`
	Sender      UserSummary  `json:"sender"`
	CreatedAt   time.Time    `json:"created_at"`
}

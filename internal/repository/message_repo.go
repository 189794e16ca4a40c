package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nik2168/nox-chat-backend/internal/model"
)

// ErrNotFound reports an absent message for a given correlation id.
var ErrNotFound = errors.New("message not found")

// MessageRepository is the durable-store collaborator for messages and the
// poll state embedded in them.
type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(col *mongo.Collection) *MessageRepository {
	return &MessageRepository{col: col}
}

func (r *MessageRepository) InsertMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := r.col.InsertOne(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return m, nil
}

// FindByTempID resolves a message through its correlation id.
func (r *MessageRepository) FindByTempID(ctx context.Context, tempID string) (*model.Message, error) {
	var m model.Message
	err := r.col.FindOne(ctx, bson.M{"temp_id": tempID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message by temp id: %w", err)
	}
	return &m, nil
}

// UpdatePollOptions replaces the full option set of a poll message.
func (r *MessageRepository) UpdatePollOptions(ctx context.Context, tempID string, opts []model.PollOption) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"temp_id": tempID},
		bson.M{"$set": bson.M{"options": opts}},
	)
	if err != nil {
		return fmt.Errorf("update poll options: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestMessages returns up to limit messages of a chat in chronological
// order; the reconciliation read-path for clients that missed live events.
func (r *MessageRepository) LatestMessages(ctx context.Context, chatID string, limit int64) ([]*model.Message, error) {
	cur, err := r.col.Find(ctx, bson.M{"chat_id": chatID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find latest messages: %w", err)
	}
	defer cur.Close(ctx)

	var out []*model.Message
	for cur.Next(ctx) {
		var m model.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

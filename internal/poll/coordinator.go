package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/model"
)

var (
	// ErrOptionOutOfRange rejects a vote on an option index the poll does
	// not have; stored state is untouched.
	ErrOptionOutOfRange = errors.New("poll option index out of range")
	// ErrNotPoll rejects a vote on a message that carries no poll.
	ErrNotPoll = errors.New("message is not a poll")
)

// Store is the durable-store slice the coordinator needs.
type Store interface {
	FindByTempID(ctx context.Context, tempID string) (*model.Message, error)
	UpdatePollOptions(ctx context.Context, tempID string, opts []model.PollOption) error
}

// Coordinator resolves concurrent vote toggles on poll messages. All votes
// for one message are funneled through a per-message lock so the
// load-mutate-persist sequence never interleaves across the awaited store
// calls.
type Coordinator struct {
	store   Store
	emitter events.Emitter
	log     *zap.SugaredLogger

	locks sync.Map // tempID -> *sync.Mutex
}

func NewCoordinator(store Store, emitter events.Emitter, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{store: store, emitter: emitter, log: log}
}

func (c *Coordinator) lockFor(tempID string) *sync.Mutex {
	v, _ := c.locks.LoadOrStore(tempID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Vote toggles the voter's choice on the option at optionIdx:
// a vote on the voter's current option removes it (un-vote); otherwise the
// voter is removed from every other option and appended to the target one,
// keeping each voter in at most one option. The updated poll state is
// persisted and then broadcast to all connections, since every client
// rendering the poll must resync.
func (c *Coordinator) Vote(ctx context.Context, tempID string, optionIdx int, voter model.UserSummary) ([]model.PollOption, error) {
	mu := c.lockFor(tempID)
	mu.Lock()
	defer mu.Unlock()

	msg, err := c.store.FindByTempID(ctx, tempID)
	if err != nil {
		return nil, fmt.Errorf("load poll message: %w", err)
	}
	if !msg.IsPoll {
		return nil, ErrNotPoll
	}
	if optionIdx < 0 || optionIdx >= len(msg.Options) {
		return nil, ErrOptionOutOfRange
	}

	alreadyVoted := false
	target := msg.Options[optionIdx].Members
	kept := target[:0]
	for _, m := range target {
		if m.ID == voter.ID {
			alreadyVoted = true
			continue
		}
		kept = append(kept, m)
	}
	msg.Options[optionIdx].Members = kept

	if !alreadyVoted {
		for i := range msg.Options {
			if i == optionIdx {
				continue
			}
			msg.Options[i].Members = removeVoter(msg.Options[i].Members, voter.ID)
		}
		msg.Options[optionIdx].Members = append(msg.Options[optionIdx].Members, voter)
	}

	if err := c.store.UpdatePollOptions(ctx, tempID, msg.Options); err != nil {
		return nil, fmt.Errorf("persist poll state: %w", err)
	}

	c.emitter.Broadcast(events.EventUpdatePoll, events.UpdatePollEvent{
		TempID:  tempID,
		ChatID:  msg.ChatID,
		VoterID: voter.ID,
		Options: msg.Options,
	})
	return msg.Options, nil
}

func removeVoter(members []model.UserSummary, voterID string) []model.UserSummary {
	kept := members[:0]
	for _, m := range members {
		if m.ID != voterID {
			kept = append(kept, m)
		}
	}
	return kept
}

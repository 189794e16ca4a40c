package poll

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/logger"
	"github.com/nik2168/nox-chat-backend/internal/model"
	"github.com/nik2168/nox-chat-backend/internal/repository"
)

// memStore mimics the repository: reads hand out copies, writes replace the
// stored option set.
type memStore struct {
	mu      sync.Mutex
	msgs    map[string]*model.Message
	updates int
}

func newMemStore(msgs ...*model.Message) *memStore {
	s := &memStore{msgs: make(map[string]*model.Message)}
	for _, m := range msgs {
		s.msgs[m.TempID] = m
	}
	return s
}

func (s *memStore) FindByTempID(ctx context.Context, tempID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[tempID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	cp.Options = copyOptions(m.Options)
	return &cp, nil
}

func (s *memStore) UpdatePollOptions(ctx context.Context, tempID string, opts []model.PollOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[tempID]
	if !ok {
		return repository.ErrNotFound
	}
	m.Options = copyOptions(opts)
	s.updates++
	return nil
}

func (s *memStore) options(tempID string) []model.PollOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyOptions(s.msgs[tempID].Options)
}

func copyOptions(opts []model.PollOption) []model.PollOption {
	out := make([]model.PollOption, len(opts))
	for i, o := range opts {
		out[i] = model.PollOption{Text: o.Text, Members: append([]model.UserSummary{}, o.Members...)}
	}
	return out
}

type recordingEmitter struct {
	mu         sync.Mutex
	broadcasts []events.UpdatePollEvent
}

func (e *recordingEmitter) EmitToUsers(userIDs []string, event string, payload any) {}

func (e *recordingEmitter) Broadcast(event string, payload any) {
	if ev, ok := payload.(events.UpdatePollEvent); ok {
		e.mu.Lock()
		e.broadcasts = append(e.broadcasts, ev)
		e.mu.Unlock()
	}
}

var (
	userA = model.UserSummary{ID: "a", Name: "alice"}
	userB = model.UserSummary{ID: "b", Name: "bob"}
)

func pollMessage(tempID string, optionTexts ...string) *model.Message {
	opts := make([]model.PollOption, len(optionTexts))
	for i, text := range optionTexts {
		opts[i] = model.PollOption{Text: text, Members: []model.UserSummary{}}
	}
	return &model.Message{TempID: tempID, ChatID: "chat-1", IsPoll: true, Options: opts}
}

func voterIDs(opt model.PollOption) []string {
	out := make([]string, len(opt.Members))
	for i, m := range opt.Members {
		out[i] = m.ID
	}
	return out
}

func TestVoteToggleReturnsToUnvotedAfterTwoApplications(t *testing.T) {
	store := newMemStore(pollMessage("p1", "x", "y"))
	c := NewCoordinator(store, &recordingEmitter{}, logger.Nop())
	ctx := context.Background()

	opts, err := c.Vote(ctx, "p1", 0, userA)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, voterIDs(opts[0]))

	opts, err = c.Vote(ctx, "p1", 0, userA)
	require.NoError(t, err)
	assert.Empty(t, opts[0].Members)
	assert.Empty(t, opts[1].Members)
}

func TestVoteSwitchingOptionsEnforcesSingleChoice(t *testing.T) {
	store := newMemStore(pollMessage("p1", "x", "y"))
	c := NewCoordinator(store, &recordingEmitter{}, logger.Nop())
	ctx := context.Background()

	_, err := c.Vote(ctx, "p1", 0, userA)
	require.NoError(t, err)
	opts, err := c.Vote(ctx, "p1", 1, userA)
	require.NoError(t, err)

	assert.Empty(t, opts[0].Members)
	assert.Equal(t, []string{"a"}, voterIDs(opts[1]))
}

func TestVoteOutOfRangeFailsWithoutMutation(t *testing.T) {
	store := newMemStore(pollMessage("p1", "x", "y"))
	c := NewCoordinator(store, &recordingEmitter{}, logger.Nop())
	ctx := context.Background()

	_, err := c.Vote(ctx, "p1", 2, userA)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	_, err = c.Vote(ctx, "p1", -1, userA)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)

	assert.Equal(t, 0, store.updates)
	stored := store.options("p1")
	assert.Empty(t, stored[0].Members)
	assert.Empty(t, stored[1].Members)
}

func TestVoteOnUnknownMessageIsNotFound(t *testing.T) {
	c := NewCoordinator(newMemStore(), &recordingEmitter{}, logger.Nop())
	_, err := c.Vote(context.Background(), "missing", 0, userA)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVoteOnPlainMessageRejected(t *testing.T) {
	msg := &model.Message{TempID: "m1", ChatID: "chat-1", Content: "not a poll"}
	c := NewCoordinator(newMemStore(msg), &recordingEmitter{}, logger.Nop())
	_, err := c.Vote(context.Background(), "m1", 0, userA)
	assert.ErrorIs(t, err, ErrNotPoll)
}

func TestVoteBroadcastsFullPollState(t *testing.T) {
	store := newMemStore(pollMessage("p1", "x", "y"))
	em := &recordingEmitter{}
	c := NewCoordinator(store, em, logger.Nop())

	_, err := c.Vote(context.Background(), "p1", 0, userA)
	require.NoError(t, err)

	require.Len(t, em.broadcasts, 1)
	ev := em.broadcasts[0]
	assert.Equal(t, "p1", ev.TempID)
	assert.Equal(t, "chat-1", ev.ChatID)
	assert.Equal(t, "a", ev.VoterID)
	assert.Equal(t, []string{"a"}, voterIDs(ev.Options[0]))
}

func TestTwoVotersEndToEnd(t *testing.T) {
	store := newMemStore(pollMessage("p1", "x", "y"))
	c := NewCoordinator(store, &recordingEmitter{}, logger.Nop())
	ctx := context.Background()

	// A votes "x", then switches to "y"; B votes "x"
	_, err := c.Vote(ctx, "p1", 0, userA)
	require.NoError(t, err)
	_, err = c.Vote(ctx, "p1", 1, userA)
	require.NoError(t, err)
	opts, err := c.Vote(ctx, "p1", 0, userB)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, voterIDs(opts[0]))
	assert.Equal(t, []string{"a"}, voterIDs(opts[1]))
}

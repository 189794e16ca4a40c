package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/model"
)

type sender interface {
	Send(ctx context.Context, in SendInput) (*model.RealtimeMessage, error)
}

// Scheduler defers a dispatch by a caller-specified delay, independent of the
// originating connection's lifetime. Pending sends live only in process
// memory: a restart loses them. That is a documented limitation of the
// engine, not something this type papers over.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	sender      sender
	fireTimeout time.Duration
	log         *zap.SugaredLogger
}

// NewScheduler wires the deferred-send timer wheel. fireTimeout bounds each
// fired send's context; zero or negative falls back to 15s.
func NewScheduler(s sender, fireTimeout time.Duration, log *zap.SugaredLogger) *Scheduler {
	if fireTimeout <= 0 {
		fireTimeout = 15 * time.Second
	}
	return &Scheduler{
		timers:      make(map[string]*time.Timer),
		sender:      s,
		fireTimeout: fireTimeout,
		log:         log,
	}
}

// Schedule arms a one-shot delivery and returns its cancellation token. The
// send fires after at least delay; there is no upper bound under load.
func (s *Scheduler) Schedule(in SendInput, delay time.Duration) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
		defer cancel()
		if _, err := s.sender.Send(ctx, in); err != nil {
			s.log.Errorw("scheduled send failed", "schedule_id", id, "chat_id", in.ChatID, "err", err)
		}
	})
	s.mu.Unlock()
	return id
}

// Cancel stops a pending delivery. Returns false when the send already fired
// or the id is unknown.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	return t.Stop()
}

// Pending reports how many deliveries are still armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending delivery; used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

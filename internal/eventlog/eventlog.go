// Package eventlog provides the relay's event plumbing: a bounded
// multi-producer single-consumer sink drained to the structured logger, and
// the per-session ring buffer of recent frames.
//
// Producers never block. On overflow the oldest queued event is dropped and
// counted; the drop total is reported when the sink closes and exposed for
// metrics.
package eventlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghostfacexx/nfcmitm/internal/logger"
)

// Event is one relay occurrence bound for the logging sink.
type Event struct {
	Time      time.Time
	SessionID string
	Kind      string // frame kind
	Action    string // processed, dropped, passthrough, blocked, ...
	Brand     string
	Strategy  string
	Edits     int
	ErrCode   string
	Err       string
	Duration  time.Duration
}

// Sink is the bounded MPSC queue. One consumer goroutine (started with Run)
// writes events to the logger.
type Sink struct {
	mu      sync.Mutex
	queue   []Event // bounded FIFO
	cap     int
	notify  chan struct{}
	dropped atomic.Uint64
}

// NewSink creates a sink holding at most capacity queued events.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Sink{
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
}

// Publish enqueues an event without blocking. When the queue is full the
// oldest event is dropped and the drop counter incremented.
func (s *Sink) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	s.mu.Lock()
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
		s.dropped.Add(1)
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Dropped returns the total number of events dropped on overflow.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drains the queue until the context is cancelled, then flushes what
// remains. It is the single consumer.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			if n := s.Dropped(); n > 0 {
				logger.Warn("Event sink dropped events on overflow", "dropped", n)
			}
			return
		case <-s.notify:
			s.flush()
		}
	}
}

func (s *Sink) flush() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			emit(ev)
		}
	}
}

func emit(ev Event) {
	args := []any{
		logger.KeySessionID, ev.SessionID,
		logger.KeyFrameKind, ev.Kind,
		"action", ev.Action,
	}
	if ev.Brand != "" {
		args = append(args, logger.KeyBrand, ev.Brand)
	}
	if ev.Strategy != "" {
		args = append(args, logger.KeyStrategy, ev.Strategy)
	}
	if ev.Edits > 0 {
		args = append(args, logger.KeyEdits, ev.Edits)
	}
	if ev.Duration > 0 {
		args = append(args, logger.KeyDurationMs, float64(ev.Duration.Microseconds())/1000.0)
	}

	if ev.ErrCode != "" || ev.Err != "" {
		args = append(args, logger.KeyErrorCode, ev.ErrCode, logger.KeyError, ev.Err)
		logger.Warn("Relay event", args...)
		return
	}
	logger.Info("Relay event", args...)
}

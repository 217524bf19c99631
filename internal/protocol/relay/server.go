// Package relay implements the TCP front end and the per-connection session
// pipeline: read a frame, extract TLV, analyze, modify, sign, reframe and
// forward.
package relay

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ghostfacexx/nfcmitm/internal/eventlog"
	"github.com/ghostfacexx/nfcmitm/internal/logger"
	"github.com/ghostfacexx/nfcmitm/internal/protocol/nfcwire"
	"github.com/ghostfacexx/nfcmitm/pkg/metrics"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
)

// Config holds the relay server configuration.
type Config struct {
	// Host is the bind address; empty binds all interfaces.
	Host string

	// Port is the TCP port to listen on.
	Port int

	// MaxSessions caps concurrent sessions; further accepts receive an
	// immediate ERROR frame and are closed. Default 50.
	MaxSessions int

	// IdleTimeout closes connections with no inbound frame. Default 120s.
	IdleTimeout time.Duration

	// WriteDeadline bounds a single outbound frame write; an exceeded
	// deadline drops the frame rather than buffering. Default 5s.
	WriteDeadline time.Duration

	// FrameBudget is the wall-clock processing budget per frame. Default 250ms.
	FrameBudget time.Duration

	// GracePeriod is how long in-flight sessions get on shutdown before
	// being closed with ERROR(SHUTTING_DOWN). Default 5s.
	GracePeriod time.Duration

	// ChecksumLimit closes a session after this many consecutive checksum
	// mismatches. Default 5.
	ChecksumLimit int

	// EventRingSize is the per-session bounded event log length. Default 64.
	EventRingSize int
}

func (c *Config) applyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 50
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.WriteDeadline <= 0 {
		c.WriteDeadline = 5 * time.Second
	}
	if c.FrameBudget <= 0 {
		c.FrameBudget = 250 * time.Millisecond
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.ChecksumLimit <= 0 {
		c.ChecksumLimit = 5
	}
	if c.EventRingSize <= 0 {
		c.EventRingSize = 64
	}
}

// Server accepts relay connections and hands each one to a session pipeline.
type Server struct {
	config  Config
	policy  *policy.Store
	sink    *eventlog.Sink
	metrics metrics.RelayMetrics
	codec   *nfcwire.Codec

	listener     net.Listener
	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	mu       sync.Mutex
	sessions map[*Session]struct{}

	startTime time.Time
}

// NewServer creates a relay server. The metrics parameter may be nil.
func NewServer(cfg Config, pol *policy.Store, sink *eventlog.Sink, m metrics.RelayMetrics) *Server {
	cfg.applyDefaults()
	return &Server{
		config:   cfg,
		policy:   pol,
		sink:     sink,
		metrics:  m,
		codec:    nfcwire.NewCodec(),
		shutdown: make(chan struct{}),
		sessions: make(map[*Session]struct{}),
	}
}

// Serve binds the listener and accepts sessions until the context is
// cancelled or Stop is called. A bind failure is returned before any accept.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = time.Now()

	logger.Info("Relay server started", "address", listener.Addr().String(),
		"max_sessions", s.config.MaxSessions)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	s.acceptLoop(ctx)

	// Stop accepting, then give in-flight sessions the grace period before
	// closing them with a final ERROR frame.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.config.GracePeriod):
		s.closeAllSessions()
		<-done
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				logger.Debug("Relay accept error", "error", err)
				return
			}
		}

		if !s.tryAdmit(conn) {
			continue
		}

		sess := newSession(s, conn)
		s.track(sess)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(sess)
			sess.run(ctx)
		}()
	}
}

// tryAdmit enforces the session ceiling. A refused connection receives a
// BUSY error frame and is closed immediately.
func (s *Server) tryAdmit(conn net.Conn) bool {
	s.mu.Lock()
	count := len(s.sessions)
	s.mu.Unlock()

	if count < s.config.MaxSessions {
		if s.metrics != nil {
			s.metrics.RecordSessionAccepted()
		}
		return true
	}

	logger.Warn("Relay session rejected at ceiling",
		logger.KeyClientIP, remoteIP(conn), "max_sessions", s.config.MaxSessions)
	if s.metrics != nil {
		s.metrics.RecordSessionRejected()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteDeadline))
	_ = s.codec.WriteFrame(conn, nfcwire.ErrorFrame([16]byte{}, nfcwire.CodeBusy, "too many sessions"))
	_ = conn.Close()
	return false
}

func (s *Server) track(sess *Session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	count := len(s.sessions)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetActiveSessions(count)
	}
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	count := len(s.sessions)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetActiveSessions(count)
		s.metrics.RecordSessionClosed()
	}
}

// closeAllSessions force-closes everything still running after the grace
// period, emitting a final shutdown error frame where the socket allows.
func (s *Server) closeAllSessions() {
	s.mu.Lock()
	remaining := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		remaining = append(remaining, sess)
	}
	s.mu.Unlock()

	for _, sess := range remaining {
		sess.shutdown()
	}
	if len(remaining) > 0 {
		logger.Warn("Relay sessions force-closed at shutdown", "count", len(remaining))
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Addr returns the listener address, empty before Serve.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Uptime reports how long the server has been serving.
func (s *Server) Uptime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

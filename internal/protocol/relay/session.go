package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ghostfacexx/nfcmitm/internal/eventlog"
	"github.com/ghostfacexx/nfcmitm/internal/logger"
	"github.com/ghostfacexx/nfcmitm/internal/protocol/nfcwire"
	"github.com/ghostfacexx/nfcmitm/internal/telemetry"
	"github.com/ghostfacexx/nfcmitm/pkg/bypass"
	"github.com/ghostfacexx/nfcmitm/pkg/mitm"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

type sessionState int

const (
	stateOpening sessionState = iota
	stateEstablished
	stateClosed
)

// Session is the per-connection pipeline. It owns all of its state; frames
// of one connection are processed and emitted strictly in order.
type Session struct {
	server *Server
	conn   net.Conn
	codec  *nfcwire.Codec

	id        [16]byte
	peer      string
	state     sessionState
	events    *eventlog.Ring
	startTime time.Time

	checksumStreak int
	frameIndex     uint64
}

func newSession(s *Server, conn net.Conn) *Session {
	return &Session{
		server:    s,
		conn:      conn,
		codec:     s.codec,
		peer:      remoteIP(conn),
		events:    eventlog.NewRing(s.config.EventRingSize),
		startTime: time.Now(),
	}
}

// shutdown sends the final shutdown error and closes the transport. Called
// from the server when the grace period expires.
func (sess *Session) shutdown() {
	_ = sess.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = sess.codec.WriteFrame(sess.conn, nfcwire.ErrorFrame(sess.id, nfcwire.CodeShuttingDown, "server shutting down"))
	_ = sess.conn.Close()
}

// run drives the read-process-write loop until the connection closes, the
// idle timeout fires, or the checksum mismatch streak hits the limit.
func (sess *Session) run(ctx context.Context) {
	defer func() {
		sess.state = stateClosed
		_ = sess.conn.Close()
		logger.Debug("Relay session closed",
			logger.KeySessionID, sess.idHex(),
			logger.KeyClientIP, sess.peer,
			"frames", sess.frameIndex,
			"events", sess.events.Len())
	}()

	logger.Debug("Relay session opened", logger.KeyClientIP, sess.peer)

	for {
		select {
		case <-sess.server.shutdown:
			return
		default:
		}

		if err := sess.conn.SetReadDeadline(time.Now().Add(sess.server.config.IdleTimeout)); err != nil {
			return
		}

		frame, err := sess.codec.ReadFrame(sess.conn)
		if err != nil {
			if !sess.handleReadError(err) {
				return
			}
			continue
		}
		sess.checksumStreak = 0

		if sess.id == ([16]byte{}) {
			sess.adoptSessionID(frame)
		}

		if !sess.dispatch(ctx, frame) {
			return
		}
	}
}

// handleReadError reports whether the session survives the error.
func (sess *Session) handleReadError(err error) bool {
	switch {
	case errors.Is(err, nfcwire.ErrChecksumMismatch):
		sess.checksumStreak++
		sess.record(eventlog.Event{Action: "dropped", Kind: "?", ErrCode: string(nfcwire.CodeChecksum), Err: err.Error()})
		logger.Warn("Relay frame checksum mismatch",
			logger.KeySessionID, sess.idHex(),
			"streak", sess.checksumStreak)
		if sess.checksumStreak >= sess.server.config.ChecksumLimit {
			logger.Warn("Relay session closed after consecutive checksum mismatches",
				logger.KeySessionID, sess.idHex(), "limit", sess.server.config.ChecksumLimit)
			return false
		}
		return true

	case errors.Is(err, nfcwire.ErrBadMagic), errors.Is(err, nfcwire.ErrBadLength):
		// Framing is lost; there is no way to resynchronize the stream.
		sess.writeFrame(nfcwire.ErrorFrame(sess.id, nfcwire.CodeFrameError, err.Error()))
		logger.Warn("Relay frame malformed", logger.KeySessionID, sess.idHex(), "error", err)
		return false

	case errors.Is(err, io.EOF):
		return false

	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			logger.Debug("Relay session idle timeout", logger.KeySessionID, sess.idHex())
		} else {
			logger.Debug("Relay session read error", logger.KeySessionID, sess.idHex(), "error", err)
		}
		return false
	}
}

// adoptSessionID takes the peer's session id from the first frame, minting
// one when the peer sent all zeroes.
func (sess *Session) adoptSessionID(frame *nfcwire.Frame) {
	if frame.SessionID == ([16]byte{}) {
		sess.id = [16]byte(uuid.New())
		return
	}
	sess.id = frame.SessionID
}

// dispatch runs the per-connection state machine. Returns false to close.
func (sess *Session) dispatch(ctx context.Context, frame *nfcwire.Frame) bool {
	sess.frameIndex++

	switch sess.state {
	case stateOpening:
		if frame.Kind != nfcwire.KindInit {
			return sess.writeFrame(nfcwire.ErrorFrame(sess.id, nfcwire.CodeFrameError,
				"expected INIT, got "+frame.Kind.String()))
		}
		sess.state = stateEstablished
		sess.record(eventlog.Event{Action: "established", Kind: frame.Kind.String()})
		logger.Info("Relay session established",
			logger.KeySessionID, sess.idHex(), logger.KeyClientIP, sess.peer)
		return sess.writeStatus()

	case stateEstablished:
		switch frame.Kind {
		case nfcwire.KindHeartbeat:
			return sess.writeFrame(&nfcwire.Frame{SessionID: sess.id, Kind: nfcwire.KindHeartbeat, Payload: frame.Payload})

		case nfcwire.KindNFCData, nfcwire.KindEmulation:
			return sess.processNFCData(ctx, frame)

		case nfcwire.KindConfig:
			return sess.applyConfig(frame)

		case nfcwire.KindStatus:
			return sess.writeStatus()

		case nfcwire.KindRelay:
			// Passthrough: re-emit unchanged, checksum recomputed by the
			// codec on write.
			sess.record(eventlog.Event{Action: "passthrough", Kind: frame.Kind.String()})
			return sess.writeFrame(frame)

		case nfcwire.KindInit:
			// Duplicate INIT is tolerated.
			return sess.writeStatus()

		case nfcwire.KindError:
			logger.Warn("Relay peer error frame", logger.KeySessionID, sess.idHex(),
				"payload_len", len(frame.Payload))
			return true

		default:
			return sess.writeFrame(nfcwire.ErrorFrame(sess.id, nfcwire.CodeFrameError,
				"unknown kind "+frame.Kind.String()))
		}

	default:
		return false
	}
}

// processNFCData runs the transform pipeline for one NFC_DATA (or EMULATION)
// frame under the wall-clock budget.
func (sess *Session) processNFCData(ctx context.Context, frame *nfcwire.Frame) bool {
	start := time.Now()
	pol := sess.server.policy.Snapshot()

	budgetCtx, cancel := context.WithTimeout(ctx, sess.server.config.FrameBudget)
	defer cancel()

	budgetCtx, span := telemetry.StartSpan(budgetCtx, "relay.nfc_data")
	defer span.End()

	done := make(chan outcome, 1)
	go func() {
		done <- sess.transform(frame.Payload, pol)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-budgetCtx.Done():
		out = outcome{code: nfcwire.CodeTimeout, err: budgetCtx.Err()}
	}

	duration := time.Since(start)
	kind := frame.Kind.String()

	if out.err != nil {
		telemetry.RecordError(budgetCtx, out.err)
		sess.record(eventlog.Event{
			Action: "rejected", Kind: kind,
			ErrCode: string(out.code), Err: out.err.Error(), Duration: duration,
		})
		if sess.server.metrics != nil {
			sess.server.metrics.RecordFrame(kind, "", "", duration, string(out.code))
		}
		return sess.writeFrame(nfcwire.ErrorFrame(sess.id, out.code, out.err.Error()))
	}

	res := out.result
	span.SetAttributes(
		telemetry.String(telemetry.AttrSessionID, sess.idHex()),
		telemetry.String(telemetry.AttrFrameKind, kind),
		telemetry.String(telemetry.AttrBrand, string(res.Info.Brand)),
		telemetry.String(telemetry.AttrStrategy, res.Summary.Strategy.Name),
		telemetry.Int(telemetry.AttrEdits, len(res.Summary.AppliedEdits)),
	)
	sess.record(eventlog.Event{
		Action: "processed", Kind: kind,
		Brand:    string(res.Info.Brand),
		Strategy: res.Summary.Strategy.Name,
		Edits:    len(res.Summary.AppliedEdits),
		Duration: duration,
	})
	if sess.server.metrics != nil {
		sess.server.metrics.RecordFrame(kind, string(res.Info.Brand), res.Summary.Strategy.Name, duration, "")
		for _, e := range res.Summary.AppliedEdits {
			sess.server.metrics.RecordEdit(e.Tag)
		}
	}
	if res.Plan.HighRisk {
		logger.Warn("High-risk combination relayed",
			logger.KeySessionID, sess.idHex(),
			logger.KeyBrand, string(res.Info.Brand),
			logger.KeyStrategy, res.Summary.Strategy.Name)
	}

	return sess.writeFrame(&nfcwire.Frame{SessionID: sess.id, Kind: frame.Kind, Payload: out.response})
}

// outcome carries one transform result across the budget boundary.
type outcome struct {
	response []byte
	result   *mitm.Result
	code     nfcwire.ErrorCode
	err      error
}

// transform is the CPU-bound part: envelope decode, TLV transform, envelope
// re-encode. It performs no I/O.
func (sess *Session) transform(payload []byte, pol policy.State) (out outcome) {
	env, err := nfcwire.ParseEnvelope(payload)
	if err != nil {
		out.code, out.err = nfcwire.CodeParseError, err
		return
	}
	raw, source, err := env.ExtractTLV()
	if err != nil {
		out.code, out.err = nfcwire.CodeParseError, err
		return
	}

	terminal := bypass.ParseTerminalKind(env.TerminalType())
	res, err := mitm.Process(raw, terminal, pol, sess.server.policy.Signer())
	if err != nil {
		out.code, out.err = taxonomyCode(err), err
		return
	}

	response, err := nfcwire.BuildResponse(env, source, res.ModifiedTLV, res.Summary)
	if err != nil {
		out.code, out.err = nfcwire.CodeInternal, err
		return
	}

	out.response, out.result = response, res
	return
}

// taxonomyCode maps pipeline errors onto the wire taxonomy.
func taxonomyCode(err error) nfcwire.ErrorCode {
	switch {
	case errors.Is(err, mitm.ErrBlocked):
		return nfcwire.CodeBlocked
	case errors.Is(err, tlv.ErrTruncatedBuffer),
		errors.Is(err, tlv.ErrOverlongLength),
		errors.Is(err, tlv.ErrEmptyTagByte):
		return nfcwire.CodeParseError
	case errors.Is(err, bypass.ErrProtectedTagEdit):
		return nfcwire.CodeInternal
	default:
		return nfcwire.CodeInternal
	}
}

// applyConfig applies the CONFIG-allowed policy fields. block_all and the
// key path are never reachable from the wire.
func (sess *Session) applyConfig(frame *nfcwire.Frame) bool {
	var patch policy.Patch
	if err := json.Unmarshal(frame.Payload, &patch); err != nil {
		return sess.writeFrame(nfcwire.ErrorFrame(sess.id, nfcwire.CodeParseError, "malformed CONFIG payload"))
	}

	if err := sess.server.policy.Update(patch.ConfigAllowed()); err != nil {
		return sess.writeFrame(nfcwire.ErrorFrame(sess.id, nfcwire.CodeInternal, err.Error()))
	}

	sess.record(eventlog.Event{Action: "config", Kind: frame.Kind.String()})
	logger.Info("Relay session applied CONFIG", logger.KeySessionID, sess.idHex())
	return sess.writeStatus()
}

// statusPayload is the STATUS response body.
type statusPayload struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	ActiveSessions int     `json:"active_sessions"`
	MITMEnabled    bool    `json:"mitm_enabled"`
	BypassPIN      bool    `json:"bypass_pin"`
	CDCVMEnabled   bool    `json:"cdcvm_enabled"`
	EnhancedLimits bool    `json:"enhanced_limits"`
	BlockAll       bool    `json:"block_all"`
}

func (sess *Session) writeStatus() bool {
	pol := sess.server.policy.Snapshot()
	payload, _ := json.Marshal(statusPayload{
		Status:         "ok",
		UptimeSeconds:  sess.server.Uptime().Seconds(),
		ActiveSessions: sess.server.SessionCount(),
		MITMEnabled:    pol.MITMEnabled,
		BypassPIN:      pol.BypassPIN,
		CDCVMEnabled:   pol.CDCVMEnabled,
		EnhancedLimits: pol.EnhancedLimits,
		BlockAll:       pol.BlockAll,
	})
	return sess.writeFrame(&nfcwire.Frame{SessionID: sess.id, Kind: nfcwire.KindStatus, Payload: payload})
}

// writeFrame emits one frame under the write deadline. A blocked write drops
// the frame, logs it and answers with a TIMEOUT ERROR frame (no ERROR is sent
// for a dropped ERROR frame); the session continues and never buffers
// unboundedly.
// Returns false only when the transport is gone.
func (sess *Session) writeFrame(frame *nfcwire.Frame) bool {
	if err := sess.conn.SetWriteDeadline(time.Now().Add(sess.server.config.WriteDeadline)); err != nil {
		return false
	}
	if err := sess.codec.WriteFrame(sess.conn, frame); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			sess.record(eventlog.Event{Action: "write_dropped", Kind: frame.Kind.String(),
				ErrCode: string(nfcwire.CodeTimeout), Err: err.Error()})
			logger.Warn("Relay outbound frame dropped on write deadline",
				logger.KeySessionID, sess.idHex(), logger.KeyFrameKind, frame.Kind.String())
			if frame.Kind != nfcwire.KindError {
				_ = sess.conn.SetWriteDeadline(time.Now().Add(sess.server.config.WriteDeadline))
				_ = sess.codec.WriteFrame(sess.conn, nfcwire.ErrorFrame(sess.id, nfcwire.CodeTimeout,
					"outbound frame dropped on write deadline"))
			}
			return true
		}
		logger.Debug("Relay write error", logger.KeySessionID, sess.idHex(), "error", err)
		return false
	}
	return true
}

// record stores the event in the session ring and forwards it to the
// process-wide sink.
func (sess *Session) record(ev eventlog.Event) {
	ev.SessionID = sess.idHex()
	sess.events.Record(ev)
	sess.server.sink.Publish(ev)
}

func (sess *Session) idHex() string {
	return (&nfcwire.Frame{SessionID: sess.id}).SessionHex()
}

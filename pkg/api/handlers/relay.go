// Package handlers implements the HTTP API handlers.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ghostfacexx/nfcmitm/internal/logger"
	"github.com/ghostfacexx/nfcmitm/internal/protocol/nfcwire"
	"github.com/ghostfacexx/nfcmitm/pkg/bypass"
	"github.com/ghostfacexx/nfcmitm/pkg/metrics"
	"github.com/ghostfacexx/nfcmitm/pkg/mitm"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

// maxRelayBody bounds an HTTP relay request body.
const maxRelayBody = 1 << 20

// RelayHandler serves the stateless JSON relay: the same envelope contract
// as the NFC_DATA inner body, over POST /.
type RelayHandler struct {
	policy  *policy.Store
	metrics metrics.RelayMetrics
	sem     chan struct{}
}

// NewRelayHandler creates the relay handler with its own concurrency
// semaphore. The metrics parameter may be nil.
func NewRelayHandler(pol *policy.Store, m metrics.RelayMetrics, maxInFlight int) *RelayHandler {
	if maxInFlight <= 0 {
		maxInFlight = 50
	}
	return &RelayHandler{
		policy:  pol,
		metrics: m,
		sem:     make(chan struct{}, maxInFlight),
	}
}

// Relay handles POST /.
//
// Status codes: 200 on success, 403 when block_all is set, 400 on a
// malformed body, 503 at the concurrency ceiling, 500 on internal errors.
func (h *RelayHandler) Relay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		h.finish(w, start, http.StatusServiceUnavailable, []byte(`{"error":"too many requests in flight"}`))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRelayBody))
	if err != nil {
		h.finish(w, start, http.StatusBadRequest, []byte(`{"error":"unreadable body"}`))
		return
	}

	env, err := nfcwire.ParseEnvelope(body)
	if err != nil {
		h.finish(w, start, http.StatusBadRequest, []byte(`{"error":"malformed envelope"}`))
		return
	}
	raw, source, err := env.ExtractTLV()
	if err != nil {
		h.finish(w, start, http.StatusBadRequest, []byte(`{"error":"no TLV data in body"}`))
		return
	}

	pol := h.policy.Snapshot()
	terminal := bypass.ParseTerminalKind(env.TerminalType())

	res, err := mitm.Process(raw, terminal, pol, h.policy.Signer())
	if err != nil {
		h.finishTransformError(w, r, start, err)
		return
	}

	response, err := nfcwire.BuildResponse(env, source, res.ModifiedTLV, res.Summary)
	if err != nil {
		h.finish(w, start, http.StatusInternalServerError, []byte(`{"error":"internal error"}`))
		return
	}

	logger.Debug("HTTP relay processed",
		logger.KeyRequestID, requestID(r),
		logger.KeyBrand, string(res.Info.Brand),
		logger.KeyStrategy, res.Summary.Strategy.Name,
		logger.KeyEdits, len(res.Summary.AppliedEdits))

	if h.metrics != nil {
		for _, e := range res.Summary.AppliedEdits {
			h.metrics.RecordEdit(e.Tag)
		}
	}
	h.finish(w, start, http.StatusOK, response)
}

// finishTransformError maps pipeline errors onto HTTP status codes the same
// way the TCP path maps them onto the wire taxonomy: malformed TLV is the
// client's fault (400), a policy block is 403, and everything else, the
// protected-tag invariant and signature failures included, is internal (500).
func (h *RelayHandler) finishTransformError(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	logger.Warn("HTTP relay transform failed",
		logger.KeyRequestID, requestID(r), logger.KeyError, err.Error())

	switch {
	case errors.Is(err, mitm.ErrBlocked):
		h.finish(w, start, http.StatusForbidden, []byte(`{"error":"blocked by policy"}`))
	case errors.Is(err, tlv.ErrTruncatedBuffer),
		errors.Is(err, tlv.ErrOverlongLength),
		errors.Is(err, tlv.ErrEmptyTagByte):
		h.finish(w, start, http.StatusBadRequest, []byte(`{"error":"malformed TLV payload"}`))
	default:
		h.finish(w, start, http.StatusInternalServerError, []byte(`{"error":"internal error"}`))
	}
}

func (h *RelayHandler) finish(w http.ResponseWriter, start time.Time, status int, body []byte) {
	if h.metrics != nil {
		h.metrics.RecordHTTPRelay(status, time.Since(start))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

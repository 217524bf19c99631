package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ghostfacexx/nfcmitm/internal/logger"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
)

// PolicyHandler exposes the policy store to the admin surface.
type PolicyHandler struct {
	store *policy.Store
}

// NewPolicyHandler creates a policy handler.
func NewPolicyHandler(store *policy.Store) *PolicyHandler {
	return &PolicyHandler{store: store}
}

// Get handles GET /api/v1/policy: the current snapshot.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.store.Snapshot()))
}

// Patch handles PATCH /api/v1/policy. This is the full admin patch:
// block_all and the key path are in scope, and a key path change reloads
// the key synchronously, rejecting the patch on failure.
func (h *PolicyHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var patch policy.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("malformed patch"))
		return
	}

	if err := h.store.Update(patch); err != nil {
		logger.Warn("Policy patch rejected",
			logger.KeyRequestID, requestID(r), logger.KeyError, err.Error())
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse(err.Error()))
		return
	}

	logger.Info("Policy updated via admin API", logger.KeyRequestID, requestID(r))
	writeJSON(w, http.StatusOK, okResponse(h.store.Snapshot()))
}

// Package policy holds the runtime-mutable proxy configuration: bypass
// toggles, the block-all switch and the signing key path.
//
// Reads are lock-free snapshots; a handler sees one consistent State for the
// duration of a frame. Updates are serialized through a single writer lock,
// and a patch that changes the key path reloads the key synchronously,
// rejecting the patch and preserving the prior key on failure.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ghostfacexx/nfcmitm/pkg/signer"
)

// State is one immutable policy snapshot.
type State struct {
	MITMEnabled    bool   `json:"mitm_enabled"`
	BypassPIN      bool   `json:"bypass_pin"`
	CDCVMEnabled   bool   `json:"cdcvm_enabled"`
	EnhancedLimits bool   `json:"enhanced_limits"`
	BlockAll       bool   `json:"block_all"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
}

// Patch carries partial updates; nil fields are left unchanged.
//
// The CONFIG frame path is restricted to the toggle fields; BlockAll and
// PrivateKeyPath are reachable only through the admin surface.
type Patch struct {
	MITMEnabled    *bool   `json:"mitm_enabled,omitempty"`
	BypassPIN      *bool   `json:"bypass_pin,omitempty"`
	CDCVMEnabled   *bool   `json:"cdcvm_enabled,omitempty"`
	EnhancedLimits *bool   `json:"enhanced_limits,omitempty"`
	BlockAll       *bool   `json:"block_all,omitempty"`
	PrivateKeyPath *string `json:"private_key_path,omitempty"`
}

// ConfigAllowed strips the fields a CONFIG frame may not touch.
func (p Patch) ConfigAllowed() Patch {
	return Patch{
		MITMEnabled:    p.MITMEnabled,
		BypassPIN:      p.BypassPIN,
		CDCVMEnabled:   p.CDCVMEnabled,
		EnhancedLimits: p.EnhancedLimits,
	}
}

// Store is the process-wide policy holder.
type Store struct {
	mu     sync.Mutex // serializes writers
	state  atomic.Pointer[State]
	signer atomic.Pointer[signer.Signer]
}

// Open loads the bootstrap JSON blob from path and the signing key it names.
// An empty path yields the zero policy (all toggles off); a file that cannot
// be read or parsed is an error. An unreadable key
// is fatal here, before the accept loop starts.
func Open(path string) (*Store, error) {
	var st State
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("policy: read %q: %w", path, err)
		}
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("policy: parse %q: %w", path, err)
		}
	}

	sgn, err := signer.Load(st.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	s := &Store{}
	s.state.Store(&st)
	s.signer.Store(sgn)
	return s, nil
}

// New builds a store from an explicit initial state, loading its key.
// Used by tests.
func New(st State) (*Store, error) {
	sgn, err := signer.Load(st.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.state.Store(&st)
	s.signer.Store(sgn)
	return s, nil
}

// Snapshot returns the current state by value. The snapshot stays valid for
// the caller regardless of concurrent updates.
func (s *Store) Snapshot() State {
	return *s.state.Load()
}

// Signer returns the current key handle. The handle itself is immutable;
// updates swap the pointer.
func (s *Store) Signer() *signer.Signer {
	return s.signer.Load()
}

// Update applies a patch atomically. When the patch changes the key path the
// new key is loaded first; on failure the patch is rejected whole and the
// prior state and key remain in effect.
func (s *Store) Update(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.state.Load()

	if p.MITMEnabled != nil {
		next.MITMEnabled = *p.MITMEnabled
	}
	if p.BypassPIN != nil {
		next.BypassPIN = *p.BypassPIN
	}
	if p.CDCVMEnabled != nil {
		next.CDCVMEnabled = *p.CDCVMEnabled
	}
	if p.EnhancedLimits != nil {
		next.EnhancedLimits = *p.EnhancedLimits
	}
	if p.BlockAll != nil {
		next.BlockAll = *p.BlockAll
	}

	if p.PrivateKeyPath != nil && *p.PrivateKeyPath != next.PrivateKeyPath {
		sgn, err := signer.Load(*p.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("policy: key reload rejected: %w", err)
		}
		next.PrivateKeyPath = *p.PrivateKeyPath
		s.signer.Store(sgn)
	}

	s.state.Store(&next)
	return nil
}

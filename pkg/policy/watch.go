package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/ghostfacexx/nfcmitm/internal/logger"
)

// Watch follows the bootstrap blob and re-applies it as a patch whenever the
// file is written. This is the admin-side mutation channel for deployments
// that manage policy as a file; the HTTP surface covers the rest.
//
// Watch blocks until the context is cancelled. A blob that fails to parse or
// whose key cannot load leaves the running policy untouched.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("policy: watch %q: %w", path, err)
	}

	logger.Debug("Policy file watch started", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reloadFile(path); err != nil {
				logger.Warn("Policy file reload rejected", "path", path, "error", err)
				continue
			}
			logger.Info("Policy reloaded from file", "path", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Policy watcher error", "error", err)
		}
	}
}

// reloadFile reads the blob and applies it as a full patch, including the
// key path (this is the admin channel, so block_all is in scope).
func (s *Store) reloadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	return s.Update(Patch{
		MITMEnabled:    &st.MITMEnabled,
		BypassPIN:      &st.BypassPIN,
		CDCVMEnabled:   &st.CDCVMEnabled,
		EnhancedLimits: &st.EnhancedLimits,
		BlockAll:       &st.BlockAll,
		PrivateKeyPath: &st.PrivateKeyPath,
	})
}

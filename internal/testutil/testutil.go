// Package testutil provides shared test helpers for wiring an owned store,
// a recovery slot and a full editing session.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/outliner/internal/persist"
	"github.com/starford/outliner/internal/recovery"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/writechan"
)

// TestSlot creates a temporary recovery store that is automatically closed.
func TestSlot(t *testing.T) *recovery.Store {
	t.Helper()
	slot, err := recovery.Open(filepath.Join(t.TempDir(), "recovery.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { slot.Close() })
	return slot
}

// TestStore creates a temporary owned-store directory.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestSession wires a session over store through a real write channel and
// runs startup. Autosave timers are effectively off. hooks may carry a
// notifier or observer; the focus keeper is always the session.
func TestSession(t *testing.T, store *storage.FS, hooks persist.Hooks) *session.Session {
	t.Helper()
	w := writechan.NewWorker(store, nil)
	t.Cleanup(w.Close)
	cl := writechan.NewClient(w, time.Second, nil)
	t.Cleanup(cl.Close)

	sess := session.New(nil)
	hooks.Focus = sess
	coord := persist.NewCoordinator(store, cl,
		persist.WithSettings(persist.Settings{DurableInterval: -1, RecoveryDelay: time.Hour}),
		persist.WithRecovery(TestSlot(t)),
		persist.WithHooks(hooks))
	t.Cleanup(coord.Close)
	sess.Bind(coord)
	if err := coord.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	return sess
}

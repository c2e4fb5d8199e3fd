package persist

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/outliner/internal/recovery"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/writechan"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<html><head><title>Plan</title></head><body>
<ul id="root"><li id="a"><p>first</p></li><li id="b" data-type="task"><p>second</p></li></ul>
</body></html>`

// memFile is an ExternalFile held in memory.
type memFile struct {
	name string

	mu       sync.Mutex
	data     []byte
	perm     storage.Permission
	grant    bool
	writeErr error
	writes   int
	gate     chan struct{} // when set, ReadAll waits for it to close
}

func (f *memFile) Name() string { return f.name }
func (f *memFile) Path() string { return "/mem/" + f.name }

func (f *memFile) QueryPermission(context.Context) (storage.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm, nil
}

func (f *memFile) RequestPermission(context.Context) (storage.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grant {
		f.perm = storage.PermissionGranted
	} else {
		f.perm = storage.PermissionDenied
	}
	return f.perm, nil
}

func (f *memFile) ReadAll(ctx context.Context) ([]byte, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...), nil
}

func (f *memFile) WriteAll(_ context.Context, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.data = append([]byte(nil), content...)
	return nil
}

func (f *memFile) content() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.data)
}

// recorder is a Notifier that keeps every call.
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Dirty(d bool) {
	if d {
		r.add("dirty")
	} else {
		r.add("clean")
	}
}

func (r *recorder) Saving(s bool) {
	if s {
		r.add("saving")
	} else {
		r.add("saved-indicator-off")
	}
}

func (r *recorder) Saved(o Origin) { r.add("saved:" + o.String()) }

func (r *recorder) Failed(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.add("failed")
}

func (r *recorder) has(e string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.events {
		if x == e {
			return true
		}
	}
	return false
}

// silentPort accepts requests and never answers unless told to.
type silentPort struct {
	req  chan []byte
	resp chan []byte
}

func newSilentPort() *silentPort {
	return &silentPort{req: make(chan []byte, 16), resp: make(chan []byte, 16)}
}

func (p *silentPort) Requests() chan<- []byte  { return p.req }
func (p *silentPort) Responses() <-chan []byte { return p.resp }

type fixture struct {
	store *storage.FS
	slot  *recovery.Store
	note  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(filepath.Join(dir, "owned"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	slot, err := recovery.Open(filepath.Join(dir, "recovery.db"), 0)
	if err != nil {
		t.Fatalf("recovery.Open: %v", err)
	}
	t.Cleanup(func() { slot.Close() })
	return &fixture{store: store, slot: slot, note: &recorder{}}
}

// coordinator wires a coordinator to a real worker over the fixture store.
func (f *fixture) coordinator(t *testing.T, s Settings, h Hooks) *Coordinator {
	t.Helper()
	w := writechan.NewWorker(f.store, nil)
	t.Cleanup(w.Close)
	cl := writechan.NewClient(w, time.Second, nil)
	t.Cleanup(cl.Close)
	return f.coordinatorWith(t, cl, s, h)
}

func (f *fixture) coordinatorWith(t *testing.T, w Writer, s Settings, h Hooks) *Coordinator {
	t.Helper()
	if s.DurableInterval == 0 {
		s.DurableInterval = -1
	}
	if h.Notify == nil {
		h.Notify = f.note
	}
	c := NewCoordinator(f.store, w,
		WithSettings(s),
		WithRecovery(f.slot),
		WithHooks(h))
	t.Cleanup(c.Close)
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

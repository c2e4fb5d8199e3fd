// Package persist tracks where the open outline came from, whether it has
// unsaved edits, and carries it to the owned store, an external file, the
// recovery slot or an export.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/outliner/internal/codec"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/recovery"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/writechan"
)

// Defaults for Settings fields left zero.
const (
	DefaultOwnedName       = "outline" + codec.Extension
	DefaultRecoveryDelay   = 2 * time.Second
	DefaultDurableInterval = 30 * time.Second
	DefaultSafetyTimeout   = 15 * time.Second
)

// Settings tune the coordinator.
type Settings struct {
	OwnedName       string        // canonical file name in the owned store
	Platform        string        // "ios" switches exports to the alternate extension
	RecoveryKey     string        // recovery slot key
	RecoveryDelay   time.Duration // debounce before a recovery draft is written
	DurableInterval time.Duration // quiet owned-store save period; negative disables
	SafetyTimeout   time.Duration // force-clears Saving if no response arrives
}

func (s *Settings) defaults() {
	if s.OwnedName == "" {
		s.OwnedName = DefaultOwnedName
	}
	if s.RecoveryKey == "" {
		s.RecoveryKey = recovery.DefaultKey
	}
	if s.RecoveryDelay <= 0 {
		s.RecoveryDelay = DefaultRecoveryDelay
	}
	if s.DurableInterval == 0 {
		s.DurableInterval = DefaultDurableInterval
	}
	if s.SafetyTimeout <= 0 {
		s.SafetyTimeout = DefaultSafetyTimeout
	}
}

// Writer sends owned-store writes across the write channel.
type Writer interface {
	Write(ctx context.Context, target string, content []byte) *writechan.Pending
}

// State is a point-in-time view of the coordinator.
type State struct {
	Origin  Origin `json:"origin"`
	Name    string `json:"name"`
	Dirty   bool   `json:"dirty"`
	Loading bool   `json:"loading"`
	Saving  bool   `json:"saving"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(c *Coordinator) { c.cfg = s }
}

// WithRecovery enables draft autosave into slot.
func WithRecovery(slot recovery.Slot) Option {
	return func(c *Coordinator) { c.slot = slot }
}

// WithHooks connects the user interface callbacks.
func WithHooks(h Hooks) Option {
	return func(c *Coordinator) { c.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator owns the open document and its persistence state.
//
// Concurrency model: mu guards every field below it. Hooks and notifier
// calls are made with mu released, since they may call back in.
type Coordinator struct {
	owned  storage.Provider
	writes Writer
	slot   recovery.Slot
	hooks  Hooks
	notify Notifier
	cfg    Settings
	log    *slog.Logger

	mu       sync.Mutex
	doc      *outline.Document
	origin   Origin
	dirty    bool
	loading  bool
	saving   int    // in-flight visible saves
	epoch    uint64 // bumped by every load
	gen      uint64 // bumped by every accepted edit
	external storage.ExternalFile
	copyName string
	target   string // owned-store target, set on first owned save
	written  string // fingerprint of the last content written to the origin
	closed   bool

	recoveryTimer *time.Timer
	stopDurable   chan struct{}
	durableDone   chan struct{}
}

// NewCoordinator returns a coordinator holding an empty document with no
// origin. owned is read at startup; writes go through w.
func NewCoordinator(owned storage.Provider, w Writer, opts ...Option) *Coordinator {
	c := &Coordinator{
		owned:  owned,
		writes: w,
		doc:    outline.NewDocument(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg.defaults()
	if c.log == nil {
		c.log = slog.Default()
	}
	c.notify = c.hooks.Notify
	if c.notify == nil {
		c.notify = nopNotifier{}
	}
	c.doc.OnChange(c.edited)

	if c.cfg.DurableInterval > 0 {
		c.stopDurable = make(chan struct{})
		c.durableDone = make(chan struct{})
		go c.durableLoop(c.cfg.DurableInterval)
	}
	return c
}

// Document returns the open document. Loads replace it, so callers should
// not hold on to the result across a load.
func (c *Coordinator) Document() *outline.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// State returns the current persistence state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Origin:  c.origin,
		Name:    c.titleSourceLocked().Title(),
		Dirty:   c.dirty,
		Loading: c.loading,
		Saving:  c.saving > 0,
	}
}

// Dirty reports whether the document has unsaved edits.
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Origin returns the current document origin.
func (c *Coordinator) Origin() Origin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin
}

// edited is the document change observer.
func (c *Coordinator) edited(ch outline.Change) {
	c.mu.Lock()
	if c.loading || c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	was := c.dirty
	c.dirty = true
	c.armRecoveryLocked()
	c.mu.Unlock()

	if !was {
		c.notify.Dirty(true)
	}
	if c.hooks.Observe != nil {
		c.hooks.Observe(ch)
	}
}

func (c *Coordinator) titleSourceLocked() codec.TitleSource {
	src := codec.TitleSource{DisplayName: c.doc.Title()}
	switch c.origin {
	case OriginExternalFile:
		if c.external != nil {
			src.ExternalName = c.external.Name()
		}
	case OriginOwnedStore:
		src.OwnedName = c.cfg.OwnedName
	case OriginLoadedCopy:
		if src.DisplayName == "" {
			src.DisplayName = c.copyName
		}
	}
	return src
}

// stamp identifies the document state a save was taken from.
type stamp struct {
	epoch, gen uint64
}

func (c *Coordinator) stampLocked() stamp {
	return stamp{epoch: c.epoch, gen: c.gen}
}

// snapshot serializes the document and returns it with the stamp it
// reflects.
func (c *Coordinator) snapshot() (string, stamp, error) {
	c.mu.Lock()
	doc, st, src := c.doc, c.stampLocked(), c.titleSourceLocked()
	c.mu.Unlock()
	text, err := codec.Serialize(doc, src)
	return text, st, err
}

func (c *Coordinator) setDirty(dirty bool) {
	c.mu.Lock()
	changed := c.dirty != dirty
	c.dirty = dirty
	c.mu.Unlock()
	if changed {
		c.notify.Dirty(dirty)
	}
}

// Close stops the autosave timers. A recovery draft still waiting on its
// debounce is written before Close returns. Pending writes still settle.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	flush := c.recoveryTimer != nil && c.recoveryTimer.Stop()
	c.mu.Unlock()

	if flush {
		c.writeRecovery()
	}

	if c.stopDurable != nil {
		close(c.stopDurable)
		<-c.durableDone
	}
}

func errAttr(err error) slog.Attr {
	return slog.String("error", err.Error())
}

package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/codec"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/storage"
)

// Startup loads the first available source: the owned store, then a
// recovered draft, then nothing. It holds the load slot for the whole
// sequence, so the attempts do not trip over each other.
func (c *Coordinator) Startup(ctx context.Context) error {
	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()

	if data, ok := c.readOwned(); ok {
		if err := c.install(data, source{origin: OriginOwnedStore}); err == nil {
			c.log.Info("persist: opened owned store", slog.String("name", c.cfg.OwnedName))
			return nil
		}
	}

	if data, ok := c.readDraft(ctx); ok {
		if c.hooks.ConfirmRestore == nil || c.hooks.ConfirmRestore("restore unsaved draft") {
			if err := c.install(data, source{origin: OriginRecoveredDraft}); err == nil {
				c.log.Info("persist: restored recovery draft")
				return nil
			}
		}
	}

	c.reset()
	return nil
}

// New replaces the document with a fresh one holding a single plain item.
func (c *Coordinator) New(ctx context.Context) error {
	if err := c.confirmDiscard("new document"); err != nil {
		return err
	}
	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()

	doc := outline.NewDocument("")
	doc.AppendChild(outline.RootID, outline.KindPlain)
	c.swap(doc, source{origin: OriginNewlyCreated})
	return nil
}

// OpenExternal loads h and makes it the save target. A read failure leaves
// the current document untouched.
func (c *Coordinator) OpenExternal(ctx context.Context, h storage.ExternalFile) error {
	if h == nil {
		return fmt.Errorf("persist: open: %w", apperr.ErrNoHandle)
	}
	if err := c.confirmDiscard("open " + h.Name()); err != nil {
		return err
	}
	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()

	data, err := h.ReadAll(ctx)
	if err != nil {
		c.notify.Failed(err)
		return fmt.Errorf("persist: open %s: %w", h.Name(), err)
	}
	return c.install(data, source{origin: OriginExternalFile, external: h, name: h.Name()})
}

// OpenCopy loads data read from a file the editor may not write back to.
func (c *Coordinator) OpenCopy(ctx context.Context, name string, data []byte) error {
	if err := c.confirmDiscard("open " + name); err != nil {
		return err
	}
	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()

	return c.install(data, source{origin: OriginLoadedCopy, name: name})
}

// LoadOwned reloads the owned store. A missing file loads as an empty,
// clean document.
func (c *Coordinator) LoadOwned(ctx context.Context) error {
	if err := c.confirmDiscard("reload " + c.cfg.OwnedName); err != nil {
		return err
	}
	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()

	data, _ := c.readOwned()
	return c.install(data, source{origin: OriginOwnedStore})
}

// RestoreDraft loads the recovery slot draft.
func (c *Coordinator) RestoreDraft(ctx context.Context) error {
	if err := c.confirmDiscard("restore unsaved draft"); err != nil {
		return err
	}
	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()

	data, ok := c.readDraft(ctx)
	if !ok {
		return fmt.Errorf("persist: restore: %w", apperr.ErrNotFound)
	}
	return c.install(data, source{origin: OriginRecoveredDraft})
}

func (c *Coordinator) beginLoad() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return apperr.ErrLoadInProgress
	}
	c.loading = true
	return nil
}

func (c *Coordinator) endLoad() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}

// Loading reports whether a load is in progress.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Coordinator) confirmDiscard(reason string) error {
	if !c.Dirty() {
		return nil
	}
	if c.hooks.ConfirmDiscard == nil || c.hooks.ConfirmDiscard(reason) {
		return nil
	}
	return fmt.Errorf("persist: %s: %w", reason, apperr.ErrDiscardCancelled)
}

type source struct {
	origin   Origin
	external storage.ExternalFile
	name     string
	content  []byte
}

// install parses data and makes it the open document. Blank input is a
// valid empty document. A parse failure resets to an empty document with
// no origin.
func (c *Coordinator) install(data []byte, src source) error {
	doc := outline.NewDocument("")
	if len(bytes.TrimSpace(data)) > 0 {
		parsed, err := codec.Parse(string(data))
		if err != nil {
			c.log.Warn("persist: load failed",
				slog.String("origin", src.origin.String()), errAttr(err))
			c.reset()
			c.notify.Failed(err)
			return fmt.Errorf("persist: load %s: %w", src.origin, err)
		}
		doc = parsed
	}
	src.content = data
	c.swap(doc, src)
	return nil
}

func (c *Coordinator) reset() {
	c.swap(outline.NewDocument(""), source{origin: OriginNone})
}

// swap installs doc as a clean document from src. Bumping the epoch keeps
// saves of the previous document from touching this one.
func (c *Coordinator) swap(doc *outline.Document, src source) {
	c.mu.Lock()
	old := c.doc
	c.doc = doc
	c.origin = src.origin
	c.external = src.external
	c.copyName = src.name
	c.written = ""
	if len(src.content) > 0 {
		c.written = checksum.Sum(src.content)
	}
	if src.origin == OriginOwnedStore {
		c.target = c.cfg.OwnedName
	}
	c.epoch++
	was := c.dirty
	c.dirty = false
	if c.recoveryTimer != nil {
		c.recoveryTimer.Stop()
	}
	c.mu.Unlock()

	if old != doc {
		old.OnChange(nil)
	}
	doc.OnChange(c.edited)
	if was {
		c.notify.Dirty(false)
	}
}

func (c *Coordinator) readOwned() ([]byte, bool) {
	if c.owned == nil {
		return nil, false
	}
	ok, err := c.owned.Exists(c.cfg.OwnedName)
	if err != nil {
		c.log.Warn("persist: owned store unavailable", errAttr(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	data, err := c.owned.Read(c.cfg.OwnedName)
	if err != nil {
		c.log.Warn("persist: read owned store", errAttr(err))
		return nil, false
	}
	return data, len(bytes.TrimSpace(data)) > 0
}

func (c *Coordinator) readDraft(ctx context.Context) ([]byte, bool) {
	if c.slot == nil {
		return nil, false
	}
	d, err := c.slot.Get(ctx, c.cfg.RecoveryKey)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("persist: read recovery draft", errAttr(err))
		return nil, false
	}
	return d.Content, len(bytes.TrimSpace(d.Content)) > 0
}

package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/codec"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/writechan"
)

// Save writes the document back to its origin. Documents without a
// writable origin go to the owned store, which becomes their origin.
func (c *Coordinator) Save(ctx context.Context) error {
	c.mu.Lock()
	origin, h := c.origin, c.external
	c.mu.Unlock()

	if origin == OriginExternalFile {
		return c.saveExternal(ctx, h)
	}
	return c.saveOwned(ctx)
}

// SaveAs writes the document to h, which becomes the origin on success.
func (c *Coordinator) SaveAs(ctx context.Context, h storage.ExternalFile) error {
	return c.saveExternal(ctx, h)
}

func (c *Coordinator) saveExternal(ctx context.Context, h storage.ExternalFile) error {
	if h == nil {
		err := fmt.Errorf("persist: save: %w", apperr.ErrNoHandle)
		c.notify.Failed(err)
		return err
	}
	if err := ensurePermission(ctx, h); err != nil {
		c.notify.Failed(err)
		return err
	}

	// Serialize under h's name, which is the file's name after this save.
	c.mu.Lock()
	doc, st, src := c.doc, c.stampLocked(), c.titleSourceLocked()
	c.mu.Unlock()
	src.ExternalName = h.Name()
	text, err := codec.Serialize(doc, src)
	if err != nil {
		c.notify.Failed(err)
		return err
	}

	done := c.beginSaving()
	err = h.WriteAll(ctx, []byte(text))
	done()
	if err != nil {
		c.log.Warn("persist: external save failed", slog.String("name", h.Name()), errAttr(err))
		c.notify.Failed(err)
		return fmt.Errorf("persist: save %s: %w", h.Name(), err)
	}

	c.markSaved(ctx, st, text, source{origin: OriginExternalFile, external: h, name: h.Name()})
	return nil
}

func ensurePermission(ctx context.Context, h storage.ExternalFile) error {
	p, err := h.QueryPermission(ctx)
	if err != nil {
		return fmt.Errorf("persist: query permission: %w", err)
	}
	if p == storage.PermissionGranted {
		return nil
	}
	p, err = h.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("persist: request permission: %w", err)
	}
	if p != storage.PermissionGranted {
		return fmt.Errorf("persist: write %s: %w", h.Name(), apperr.ErrPermissionDenied)
	}
	return nil
}

// saveOwned sends the document through the write channel and waits for the
// outcome. The safety timer clears Saving even if the channel never answers.
func (c *Coordinator) saveOwned(ctx context.Context) error {
	text, st, err := c.snapshotFor(OriginOwnedStore)
	if err != nil {
		c.notify.Failed(err)
		return err
	}

	done := c.beginSaving()
	safety := time.AfterFunc(c.cfg.SafetyTimeout, func() {
		c.log.Warn("persist: owned save unanswered, clearing saving state")
		done()
	})
	p := c.writes.Write(ctx, c.ownedTarget(), []byte(text))
	p.OnSettle(func(r writechan.Result) {
		safety.Stop()
		done()
		c.ownedSettled(r, st, text)
	})
	_, err = p.Wait(ctx)
	return err
}

// ownedTarget returns the owned-store file name, creating the handle on
// first use.
func (c *Coordinator) ownedTarget() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == "" {
		c.target = c.cfg.OwnedName
		c.log.Info("persist: owned store handle created", slog.String("name", c.target))
	}
	return c.target
}

func (c *Coordinator) ownedSettled(r writechan.Result, st stamp, text string) {
	if r.Err != nil {
		c.log.Warn("persist: owned save failed",
			slog.String("correlation_id", r.CorrelationID), errAttr(r.Err))
		c.notify.Failed(r.Err)
		return
	}
	c.markSaved(context.Background(), st, text, source{origin: OriginOwnedStore})
}

// snapshotFor serializes the document titled as it will be once saved to
// origin.
func (c *Coordinator) snapshotFor(origin Origin) (string, stamp, error) {
	c.mu.Lock()
	doc, st, src := c.doc, c.stampLocked(), c.titleSourceLocked()
	c.mu.Unlock()
	if origin == OriginOwnedStore {
		src.ExternalName = ""
		src.OwnedName = c.cfg.OwnedName
	}
	text, err := codec.Serialize(doc, src)
	return text, st, err
}

// markSaved records a successful write of the content taken at st. A load
// since then makes the write irrelevant to the open document. An edit since
// then moves the origin but leaves the document dirty.
func (c *Coordinator) markSaved(ctx context.Context, st stamp, text string, src source) {
	c.mu.Lock()
	if st.epoch != c.epoch {
		c.mu.Unlock()
		c.log.Debug("persist: save finished after a load, ignoring")
		return
	}
	c.origin = src.origin
	if src.origin == OriginExternalFile {
		c.external = src.external
		c.copyName = src.name
	}
	c.written = checksum.SumString(text)
	clean := st.gen == c.gen
	was := c.dirty
	if clean {
		c.dirty = false
		if c.recoveryTimer != nil {
			c.recoveryTimer.Stop()
		}
	}
	c.mu.Unlock()

	if clean && was {
		c.notify.Dirty(false)
	}
	c.notify.Saved(src.origin)
	if clean {
		c.pruneRecovery(ctx)
	}
}

func (c *Coordinator) pruneRecovery(ctx context.Context) {
	if c.slot == nil {
		return
	}
	if err := c.slot.Clear(ctx, c.cfg.RecoveryKey); err != nil {
		c.log.Warn("persist: prune recovery draft", errAttr(err))
	}
}

// beginSaving raises the Saving indicator and returns the function that
// lowers it again. The returned function is safe to call more than once.
func (c *Coordinator) beginSaving() func() {
	c.mu.Lock()
	c.saving++
	first := c.saving == 1
	c.mu.Unlock()
	if first {
		c.notify.Saving(true)
	}
	return sync.OnceFunc(func() {
		c.mu.Lock()
		c.saving--
		last := c.saving == 0
		c.mu.Unlock()
		if last {
			c.notify.Saving(false)
		}
	})
}

// Saving reports whether a visible save is in flight.
func (c *Coordinator) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving > 0
}

package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/writechan"
)

// armRecoveryLocked restarts the recovery debounce. Caller holds c.mu.
func (c *Coordinator) armRecoveryLocked() {
	if c.slot == nil {
		return
	}
	if c.recoveryTimer != nil {
		c.recoveryTimer.Stop()
	}
	c.recoveryTimer = time.AfterFunc(c.cfg.RecoveryDelay, c.autosaveRecovery)
}

// autosaveRecovery writes the current content to the recovery slot if the
// document is still dirty. A full slot skips the cycle.
func (c *Coordinator) autosaveRecovery() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.writeRecovery()
	}
}

func (c *Coordinator) writeRecovery() {
	c.mu.Lock()
	skip := !c.dirty || c.loading
	c.mu.Unlock()
	if skip {
		return
	}

	text, _, err := c.snapshot()
	if err != nil {
		c.log.Warn("persist: recovery autosave serialize", errAttr(err))
		return
	}
	err = c.slot.Put(context.Background(), c.cfg.RecoveryKey, []byte(text))
	switch {
	case errors.Is(err, apperr.ErrQuotaExceeded):
		c.log.Warn("persist: recovery slot full, skipping", errAttr(err))
		c.notify.Failed(err)
	case err != nil:
		c.log.Warn("persist: recovery autosave", errAttr(err))
	default:
		c.log.Debug("persist: recovery draft written", slog.Int("bytes", len(text)))
	}
}

func (c *Coordinator) durableLoop(every time.Duration) {
	defer close(c.durableDone)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopDurable:
			return
		case <-ticker.C:
			c.QuietSave()
		}
	}
}

// QuietSave writes a dirty owned-store document through the write channel
// without raising the Saving indicator. The editor selection captured
// before the write is restored once it settles or the safety timeout
// passes, whichever is first. It returns the pending write, or nil when
// there was nothing to do.
func (c *Coordinator) QuietSave() *writechan.Pending {
	c.mu.Lock()
	skip := c.origin != OriginOwnedStore || !c.dirty || c.loading || c.closed
	last := c.written
	c.mu.Unlock()
	if skip {
		return nil
	}

	text, st, err := c.snapshotFor(OriginOwnedStore)
	if err != nil {
		c.log.Warn("persist: quiet save serialize", errAttr(err))
		return nil
	}
	if checksum.SumString(text) == last {
		// Edits cancelled out; the store already holds this content.
		c.markSaved(context.Background(), st, text, source{origin: OriginOwnedStore})
		return nil
	}

	restore := func() {}
	if f := c.hooks.Focus; f != nil {
		sel := f.Capture()
		restore = sync.OnceFunc(func() { f.Restore(sel) })
	}
	safety := time.AfterFunc(c.cfg.SafetyTimeout, restore)

	p := c.writes.Write(context.Background(), c.ownedTarget(), []byte(text))
	p.OnSettle(func(r writechan.Result) {
		safety.Stop()
		c.ownedSettled(r, st, text)
		restore()
	})
	return p
}

package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/checksum"
)

// ExternalChanged reacts to the external file being modified on disk. A
// clean document reloads; a dirty one keeps its edits and reports a
// conflict. Changes that match the last write are echoes of our own save.
func (c *Coordinator) ExternalChanged(ctx context.Context) error {
	c.mu.Lock()
	h, origin, dirty, written := c.external, c.origin, c.dirty, c.written
	c.mu.Unlock()
	if origin != OriginExternalFile || h == nil {
		return nil
	}

	data, err := h.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("persist: reread %s: %w", h.Name(), err)
	}
	if checksum.Sum(data) == written {
		return nil
	}
	if dirty {
		err := fmt.Errorf("persist: %s changed on disk with unsaved edits: %w", h.Name(), apperr.ErrConflict)
		c.notify.Failed(err)
		return err
	}

	if err := c.beginLoad(); err != nil {
		return err
	}
	defer c.endLoad()
	c.log.Info("persist: reloading external file", slog.String("name", h.Name()))
	return c.install(data, source{origin: OriginExternalFile, external: h, name: h.Name()})
}

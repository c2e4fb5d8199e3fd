package persist

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/codec"
	"github.com/starford/outliner/internal/storage"
)

// PlatformIOS is the platform that refuses the canonical extension.
const PlatformIOS = "ios"

const fallbackExportBase = "outline"

// Export is a one-shot download of the document.
type Export struct {
	Name    string
	Content string
}

// Export renders the document for download. It never changes the origin or
// the dirty flag.
func (c *Coordinator) Export() (Export, error) {
	c.mu.Lock()
	doc := c.doc
	name := c.suggestedNameLocked()
	c.mu.Unlock()

	if doc.Empty() {
		return Export{}, fmt.Errorf("persist: export: %w", apperr.ErrEmptyDocument)
	}
	text, _, err := c.snapshot()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: ExportName(name, c.cfg.Platform), Content: text}, nil
}

// ExportTo writes the export atomically into dir of dst and returns the
// path it wrote.
func (c *Coordinator) ExportTo(ctx context.Context, dst storage.Provider, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	exp, err := c.Export()
	if err != nil {
		return "", err
	}
	p := path.Join(dir, exp.Name)
	if err := dst.Write(p, []byte(exp.Content)); err != nil {
		return "", fmt.Errorf("persist: export: %w", err)
	}
	return p, nil
}

func (c *Coordinator) suggestedNameLocked() string {
	switch c.origin {
	case OriginExternalFile:
		if c.external != nil {
			return c.external.Name()
		}
	case OriginOwnedStore:
		return c.cfg.OwnedName
	case OriginLoadedCopy:
		if c.copyName != "" {
			return c.copyName
		}
	}
	return c.doc.Title()
}

// ExportName turns name into a safe download file name carrying the
// outline extension for platform.
func ExportName(name, platform string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`\/:*?"<>|`, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	for {
		stripped := strings.Trim(codec.StripExtension(name), " .")
		if stripped == name {
			break
		}
		name = stripped
	}
	if name == "" {
		name = fallbackExportBase
	}
	if strings.EqualFold(platform, PlatformIOS) {
		return name + codec.AltExtension
	}
	return name + codec.Extension
}

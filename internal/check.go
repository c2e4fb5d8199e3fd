package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/codec"
)

// CheckReport summarizes a file self-check.
type CheckReport struct {
	Path   string
	Title  string
	Nodes  int
	Stable bool
}

// Check parses the outline at path, serializes it and parses the result
// again. The file is valid when the second parse yields the same outline.
// A human-readable summary is written to w.
func Check(path string, w io.Writer) (CheckReport, error) {
	rep := CheckReport{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return rep, fmt.Errorf("check: %w", err)
	}
	doc, err := codec.Parse(string(data))
	if err != nil {
		return rep, fmt.Errorf("check %s: %w", path, err)
	}
	rep.Nodes = doc.Len()

	out, err := codec.Serialize(doc, codec.TitleSource{ExternalName: filepath.Base(path)})
	if err != nil {
		return rep, fmt.Errorf("check %s: %w", path, err)
	}
	again, err := codec.Parse(out)
	if err != nil {
		return rep, fmt.Errorf("check %s: reparse: %w", path, err)
	}
	rep.Title = again.Title()
	rep.Stable = codec.Equivalent(doc.Snapshot(), again.Snapshot())

	fmt.Fprintf(w, "%s: %d nodes, title %q\n", path, rep.Nodes, rep.Title)
	if !rep.Stable {
		return rep, fmt.Errorf("check %s: outline changed across a save: %w", path, apperr.ErrSerialize)
	}
	fmt.Fprintln(w, "ok")
	return rep, nil
}

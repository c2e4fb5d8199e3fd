// Package session bundles the open outline, its persistence coordinator and
// the editor selection into one object the command surfaces share.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/persist"
)

// Command names accepted by Apply.
const (
	CmdCreate   = "create"
	CmdAppend   = "append"
	CmdDelete   = "delete"
	CmdIndent   = "indent"
	CmdOutdent  = "outdent"
	CmdMoveUp   = "move-up"
	CmdMoveDown = "move-down"
	CmdMove     = "move"
	CmdKind     = "kind"
	CmdDone     = "done"
	CmdFold     = "fold"
	CmdBody     = "body"
	CmdSelect   = "select"
	CmdTitle    = "title"
)

// Command is one editing request.
type Command struct {
	Op       string         `json:"op"`
	ID       outline.NodeID `json:"id,omitempty"`
	Target   outline.NodeID `json:"target,omitempty"`
	Position string         `json:"position,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Body     string         `json:"body,omitempty"`
	Value    bool           `json:"value,omitempty"`
}

// Result reports what a command did. Applied is false when the tree
// refused the edit, which is not an error. Depth is the nesting level of
// ID after the command, 1 for top-level items.
type Result struct {
	Applied   bool              `json:"applied"`
	ID        outline.NodeID    `json:"id,omitempty"`
	Depth     int               `json:"depth,omitempty"`
	Selection persist.Selection `json:"selection"`
}

// Session is the explicit editing context: no package-level state is kept
// anywhere else.
type Session struct {
	coord *persist.Coordinator

	mu  sync.Mutex
	sel persist.Selection
}

// New returns a session over coord. Register the session as coord's
// FocusKeeper with persist.WithHooks if quiet saves should keep the
// selection.
func New(coord *persist.Coordinator) *Session {
	return &Session{coord: coord}
}

// Bind attaches a coordinator created after the session.
func (s *Session) Bind(coord *persist.Coordinator) {
	s.mu.Lock()
	s.coord = coord
	s.mu.Unlock()
}

// Coordinator returns the persistence coordinator.
func (s *Session) Coordinator() *persist.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord
}

// Document returns the open document.
func (s *Session) Document() *outline.Document {
	return s.Coordinator().Document()
}

// Capture implements persist.FocusKeeper.
func (s *Session) Capture() persist.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Restore implements persist.FocusKeeper. A selection on a node that no
// longer exists is dropped.
func (s *Session) Restore(sel persist.Selection) {
	if sel.Node != "" && !s.Document().Attached(sel.Node) {
		sel = persist.Selection{}
	}
	s.mu.Lock()
	s.sel = sel
	s.mu.Unlock()
}

// Selection returns the current selection.
func (s *Session) Selection() persist.Selection { return s.Capture() }

// Select focuses id with a collapsed caret at offset.
func (s *Session) Select(id outline.NodeID, offset int) bool {
	if id != "" && !s.Document().Attached(id) {
		return false
	}
	s.mu.Lock()
	s.sel = persist.Selection{Node: id, Anchor: offset, Focus: offset}
	s.mu.Unlock()
	return true
}

// Apply runs one editing command against the open document.
func (s *Session) Apply(_ context.Context, cmd Command) (Result, error) {
	doc := s.Document()
	res := Result{ID: cmd.ID}

	switch cmd.Op {
	case CmdCreate:
		if cmd.ID == "" || cmd.ID == outline.RootID {
			res.ID, res.Applied = doc.AppendChild(outline.RootID, outline.KindPlain)
		} else {
			res.ID, res.Applied = doc.CreateSibling(cmd.ID)
		}
	case CmdAppend:
		parent := cmd.ID
		if parent == "" {
			parent = outline.RootID
		}
		kind, ok := outline.ParseKind(cmd.Kind)
		if !ok {
			return res, fmt.Errorf("session: unknown kind %q: %w", cmd.Kind, apperr.ErrInvalidCommand)
		}
		res.ID, res.Applied = doc.AppendChild(parent, kind)
	case CmdDelete:
		next, hasNext := Successor(doc, cmd.ID)
		res.Applied = doc.Delete(cmd.ID)
		if res.Applied {
			res.ID = ""
			if hasNext {
				res.ID = next
			}
		}
	case CmdIndent:
		res.Applied = doc.Indent(cmd.ID)
	case CmdOutdent:
		res.Applied = doc.Outdent(cmd.ID)
	case CmdMoveUp:
		res.Applied = doc.MoveUp(cmd.ID)
	case CmdMoveDown:
		res.Applied = doc.MoveDown(cmd.ID)
	case CmdMove:
		pos, ok := outline.ParsePosition(cmd.Position)
		if !ok {
			return res, fmt.Errorf("session: unknown position %q: %w", cmd.Position, apperr.ErrInvalidCommand)
		}
		res.Applied = doc.MoveTo(cmd.ID, cmd.Target, pos)
	case CmdKind:
		kind, ok := outline.ParseKind(cmd.Kind)
		if !ok {
			return res, fmt.Errorf("session: unknown kind %q: %w", cmd.Kind, apperr.ErrInvalidCommand)
		}
		res.Applied = doc.ChangeKind(cmd.ID, kind)
	case CmdDone:
		res.Applied = doc.SetDone(cmd.ID, cmd.Value)
	case CmdFold:
		res.Applied = doc.SetFolded(cmd.ID, cmd.Value)
	case CmdBody:
		res.Applied = doc.SetBody(cmd.ID, cmd.Body)
	case CmdSelect:
		res.Applied = s.Select(cmd.ID, 0)
	case CmdTitle:
		res.ID = ""
		res.Applied = doc.SetTitle(strings.TrimSpace(cmd.Body))
	default:
		return res, fmt.Errorf("session: unknown op %q: %w", cmd.Op, apperr.ErrInvalidCommand)
	}

	if res.Applied && cmd.Op != CmdSelect {
		s.follow(cmd.Op, res.ID)
	}
	if res.ID != "" && res.ID != outline.RootID {
		res.Depth = doc.Depth(res.ID)
	}
	res.Selection = s.Capture()
	return res, nil
}

// follow moves the selection after an accepted edit: onto a created node,
// onto the delete successor, or nowhere for edits that keep focus in place.
func (s *Session) follow(op string, id outline.NodeID) {
	switch op {
	case CmdCreate, CmdAppend:
		s.Select(id, 0)
	case CmdDelete:
		s.mu.Lock()
		s.sel = persist.Selection{Node: id}
		s.mu.Unlock()
	}
}

// Successor picks the node that takes focus when id is deleted: the
// previous visible node, else the next visible node outside id's subtree,
// else id's parent unless that is the root.
func Successor(doc *outline.Document, id outline.NodeID) (outline.NodeID, bool) {
	if !doc.Attached(id) || id == outline.RootID {
		return "", false
	}
	if prev, ok := doc.PreviousVisible(id); ok {
		return prev, true
	}
	visible := doc.Visible()
	for i, v := range visible {
		if v != id {
			continue
		}
		for _, next := range visible[i+1:] {
			if !doc.IsDescendant(next, id) {
				return next, true
			}
		}
		break
	}
	if p, ok := doc.Parent(id); ok && p != outline.RootID {
		return p, true
	}
	return "", false
}

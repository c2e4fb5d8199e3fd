package session

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/persist"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	s := New(nil)
	c := persist.NewCoordinator(nil, nil,
		persist.WithSettings(persist.Settings{DurableInterval: -1}),
		persist.WithHooks(persist.Hooks{Focus: s}))
	t.Cleanup(c.Close)
	s.Bind(c)
	return s
}

func apply(t *testing.T, s *Session, cmd Command) Result {
	t.Helper()
	res, err := s.Apply(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Apply(%+v): %v", cmd, err)
	}
	return res
}

func TestCreateSelectsNewNode(t *testing.T) {
	s := testSession(t)
	res := apply(t, s, Command{Op: CmdCreate})
	if !res.Applied || res.ID == "" {
		t.Fatalf("create = %+v", res)
	}
	if s.Selection().Node != res.ID {
		t.Errorf("selection = %+v, want %s", s.Selection(), res.ID)
	}
	if !s.Coordinator().Dirty() {
		t.Error("create did not dirty the document")
	}

	sib := apply(t, s, Command{Op: CmdCreate, ID: res.ID})
	kids := s.Document().Children(outline.RootID)
	if len(kids) != 2 || kids[1] != sib.ID {
		t.Errorf("children = %v", kids)
	}
}

func TestRejectedEditIsNotAnError(t *testing.T) {
	s := testSession(t)
	a := apply(t, s, Command{Op: CmdCreate})
	res := apply(t, s, Command{Op: CmdIndent, ID: a.ID})
	if res.Applied {
		t.Error("indent of first child accepted")
	}
}

func TestUnknownCommand(t *testing.T) {
	s := testSession(t)
	for _, cmd := range []Command{
		{Op: "explode"},
		{Op: CmdKind, ID: "x", Kind: "quote"},
		{Op: CmdMove, ID: "x", Target: "y", Position: "beside"},
	} {
		if _, err := s.Apply(context.Background(), cmd); !errors.Is(err, apperr.ErrInvalidCommand) {
			t.Errorf("Apply(%+v) err = %v", cmd, err)
		}
	}
}

func TestCommandsReachTree(t *testing.T) {
	s := testSession(t)
	a := apply(t, s, Command{Op: CmdCreate}).ID
	b := apply(t, s, Command{Op: CmdCreate, ID: a}).ID

	for _, cmd := range []Command{
		{Op: CmdKind, ID: b, Kind: "task"},
		{Op: CmdDone, ID: b, Value: true},
		{Op: CmdBody, ID: b, Body: "do it"},
		{Op: CmdIndent, ID: b},
		{Op: CmdFold, ID: a, Value: true},
	} {
		if !apply(t, s, cmd).Applied {
			t.Fatalf("%+v refused", cmd)
		}
	}
	n, _ := s.Document().Node(b)
	if n.Kind != outline.KindTask || !n.Done || n.Body != "do it" || n.Parent != a {
		t.Errorf("b = %+v", n)
	}
	if pa, _ := s.Document().Node(a); !pa.Folded {
		t.Error("a not folded")
	}

	if !apply(t, s, Command{Op: CmdMove, ID: b, Target: a, Position: "before"}).Applied {
		t.Fatal("move refused")
	}
	if kids := s.Document().Children(outline.RootID); kids[0] != b {
		t.Errorf("children = %v", kids)
	}
}

func TestDeleteMovesSelectionToSuccessor(t *testing.T) {
	s := testSession(t)
	a := apply(t, s, Command{Op: CmdCreate}).ID
	b := apply(t, s, Command{Op: CmdCreate, ID: a}).ID
	c := apply(t, s, Command{Op: CmdCreate, ID: b}).ID

	res := apply(t, s, Command{Op: CmdDelete, ID: b})
	if !res.Applied || res.ID != a || s.Selection().Node != a {
		t.Errorf("delete b = %+v, selection %+v", res, s.Selection())
	}
	res = apply(t, s, Command{Op: CmdDelete, ID: a})
	if res.ID != c {
		t.Errorf("delete first: successor = %q, want %q", res.ID, c)
	}
	res = apply(t, s, Command{Op: CmdDelete, ID: c})
	if res.ID != "" || s.Selection().Node != "" {
		t.Errorf("delete last: %+v", res)
	}
}

func TestSuccessorSkipsOwnSubtree(t *testing.T) {
	doc := outline.NewDocument("")
	a, _ := doc.AppendChild(outline.RootID, outline.KindPlain)
	child, _ := doc.AppendChild(a, outline.KindPlain)
	b, _ := doc.AppendChild(outline.RootID, outline.KindPlain)

	if next, ok := Successor(doc, a); !ok || next != b {
		t.Errorf("Successor(a) = %q, %v; want %q", next, ok, b)
	}
	if prev, ok := Successor(doc, child); !ok || prev != a {
		t.Errorf("Successor(child) = %q, want parent via previous visible", prev)
	}
	if _, ok := Successor(doc, "missing"); ok {
		t.Error("missing node has a successor")
	}
}

func TestRestoreDropsStaleSelection(t *testing.T) {
	s := testSession(t)
	a := apply(t, s, Command{Op: CmdCreate}).ID
	s.Restore(persist.Selection{Node: a, Anchor: 2, Focus: 4})
	if got := s.Capture(); got.Node != a || got.Focus != 4 {
		t.Errorf("Capture = %+v", got)
	}
	s.Restore(persist.Selection{Node: "gone"})
	if got := s.Capture(); got.Node != "" {
		t.Errorf("stale selection kept: %+v", got)
	}
}

func TestView(t *testing.T) {
	s := testSession(t)
	a := apply(t, s, Command{Op: CmdCreate}).ID
	apply(t, s, Command{Op: CmdAppend, ID: a, Kind: "task"})
	v := s.View()
	if v.Count != 2 || len(v.Items) != 1 || len(v.Items[0].Children) != 1 {
		t.Fatalf("view = %+v", v)
	}
	if v.Items[0].Children[0].Kind != "task" {
		t.Errorf("child kind = %q", v.Items[0].Children[0].Kind)
	}
	if !v.State.Dirty || v.Title != "Untitled" {
		t.Errorf("state = %+v title = %q", v.State, v.Title)
	}
}

func TestCommandsReportDepth(t *testing.T) {
	s := testSession(t)
	a := apply(t, s, Command{Op: CmdCreate})
	if a.Depth != 1 {
		t.Errorf("top-level depth = %d", a.Depth)
	}
	b := apply(t, s, Command{Op: CmdCreate, ID: a.ID})
	res := apply(t, s, Command{Op: CmdIndent, ID: b.ID})
	if !res.Applied || res.Depth != 2 {
		t.Errorf("indent = %+v, want depth 2", res)
	}
	res = apply(t, s, Command{Op: CmdOutdent, ID: b.ID})
	if res.Depth != 1 {
		t.Errorf("outdent depth = %d", res.Depth)
	}
}

func TestTitleRenamesAndDirties(t *testing.T) {
	s := testSession(t)
	res := apply(t, s, Command{Op: CmdTitle, Body: "  Trip plan "})
	if !res.Applied {
		t.Fatal("rename refused")
	}
	if got := s.Document().Title(); got != "Trip plan" {
		t.Errorf("title = %q", got)
	}
	if got := s.Coordinator().State().Name; got != "Trip plan" {
		t.Errorf("state name = %q", got)
	}
	if !s.Coordinator().Dirty() {
		t.Error("rename did not dirty the document")
	}
	if again := apply(t, s, Command{Op: CmdTitle, Body: "Trip plan"}); again.Applied {
		t.Error("same title reported as a change")
	}
}

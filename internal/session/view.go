package session

import (
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/persist"
)

// ItemView is the JSON shape of one outline item.
type ItemView struct {
	ID       outline.NodeID `json:"id"`
	Kind     string         `json:"kind"`
	Body     string         `json:"body,omitempty"`
	Done     bool           `json:"done,omitempty"`
	Folded   bool           `json:"folded,omitempty"`
	Children []ItemView     `json:"children,omitempty"`
}

// OutlineView is the full read model of the open outline.
type OutlineView struct {
	Title     string            `json:"title"`
	Count     int               `json:"count"`
	State     persist.State     `json:"state"`
	Selection persist.Selection `json:"selection"`
	Items     []ItemView        `json:"items"`
}

// View snapshots the open outline.
func (s *Session) View() OutlineView {
	coord := s.Coordinator()
	root := coord.Document().Snapshot()
	st := coord.State()
	return OutlineView{
		Title:     st.Name,
		Count:     root.Count(),
		State:     st,
		Selection: s.Capture(),
		Items:     nonNilSlice(itemViews(root.Children)),
	}
}

func itemViews(items []outline.Item) []ItemView {
	if len(items) == 0 {
		return nil
	}
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = ItemView{
			ID:       it.ID,
			Kind:     it.Kind.String(),
			Body:     it.Body,
			Done:     it.Done,
			Folded:   it.Folded,
			Children: itemViews(it.Children),
		}
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

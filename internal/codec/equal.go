package codec

import "github.com/starford/outliner/internal/outline"

// Equivalent reports whether two snapshots describe the same outline once
// presentation-only differences are normalized away: decorated or
// placeholder bodies, done flags on non-tasks and fold flags on leaves.
func Equivalent(a, b outline.Item) bool {
	if a.Kind != b.Kind || len(a.Children) != len(b.Children) {
		return false
	}
	if a.Kind == outline.KindTask && a.Done != b.Done {
		return false
	}
	if len(a.Children) > 0 && a.Folded != b.Folded {
		return false
	}
	if Normalize(a.Kind, a.Body) != Normalize(b.Kind, b.Body) {
		return false
	}
	for i := range a.Children {
		if a.Children[i].ID != b.Children[i].ID || !Equivalent(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

package persist

import "github.com/starford/outliner/internal/outline"

// Selection is the editor focus a quiet save must put back.
type Selection struct {
	Node   outline.NodeID `json:"node,omitempty"`
	Anchor int            `json:"anchor"`
	Focus  int            `json:"focus"`
}

// FocusKeeper captures and restores the editor selection around a quiet
// durable save.
type FocusKeeper interface {
	Capture() Selection
	Restore(Selection)
}

// Notifier receives status changes. Calls are made without any coordinator
// lock held and may arrive from timer goroutines.
type Notifier interface {
	Dirty(dirty bool)
	Saving(saving bool)
	Saved(origin Origin)
	Failed(err error)
}

// Hooks connect the coordinator to the user interface. Every field is
// optional.
type Hooks struct {
	// ConfirmDiscard is asked before unsaved changes are thrown away. A nil
	// hook allows the discard.
	ConfirmDiscard func(reason string) bool
	// ConfirmRestore is asked before a recovered draft is loaded at startup.
	// A nil hook restores.
	ConfirmRestore func(reason string) bool
	Focus          FocusKeeper
	Notify         Notifier
	// Observe sees every accepted edit that happens outside a load.
	Observe func(outline.Change)
}

type nopNotifier struct{}

func (nopNotifier) Dirty(bool)   {}
func (nopNotifier) Saving(bool)  {}
func (nopNotifier) Saved(Origin) {}
func (nopNotifier) Failed(error) {}

package api

import (
	"github.com/starford/outliner/internal/persist"
	"github.com/starford/outliner/internal/session"
)

// OutlineResponse is the full outline view (aliased from the session layer).
type OutlineResponse = session.OutlineView

// CommandRequest is one editing command (aliased from the session layer).
type CommandRequest = session.Command

// CommandResponse reports whether a command changed the document.
type CommandResponse struct {
	Result session.Result `json:"result" validate:"required"`
	State  persist.State  `json:"state" validate:"required"`
}

// StateResponse carries the persistence state after a save or load.
type StateResponse struct {
	State persist.State `json:"state" validate:"required"`
}

// ExportResponse names the file an export wrote.
type ExportResponse struct {
	Path string `json:"path" example:"exports/Groceries.bike" validate:"required"`
}

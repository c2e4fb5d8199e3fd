// Package apperr defines the sentinel errors shared across the outliner.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrParse            = errors.New("parse error")
	ErrSerialize        = errors.New("serialize error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrChannelTimeout   = errors.New("write channel timeout")
	ErrInvalidTarget    = errors.New("invalid target")

	ErrLoadInProgress   = errors.New("load already in progress")
	ErrDiscardCancelled = errors.New("discard cancelled")
	ErrNoHandle         = errors.New("no file handle")
	ErrEmptyDocument    = errors.New("document is empty")
	ErrChannelClosed    = errors.New("write channel closed")
	ErrInvalidCommand   = errors.New("invalid command")
)

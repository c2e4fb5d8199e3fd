// Package writechan carries durable owned-store writes across an isolated
// worker boundary. Requests and responses are encoded frames passed over
// channels; the two sides share no memory. Every request carries a
// correlation id and each caller-side future is bounded by a timeout.
package writechan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/starford/outliner/internal/apperr"
)

// ActionWrite is the only action the worker understands.
const ActionWrite = "write"

// ErrorClass groups worker failures by what the caller can do about them.
type ErrorClass string

const (
	ClassPermission   ErrorClass = "permission"
	ClassQuota        ErrorClass = "quota"
	ClassInvalidState ErrorClass = "invalid-state"
	ClassUnknown      ErrorClass = "unknown"
)

// Request is a write request frame.
type Request struct {
	Action        string `json:"action"`
	Target        string `json:"target"`
	Content       string `json:"content"`
	CorrelationID string `json:"correlationId"`
}

// Response is a write response frame. CorrelationID may be empty when the
// responder does not echo it.
type Response struct {
	Action        string     `json:"action"`
	Success       bool       `json:"success"`
	Target        string     `json:"target"`
	CorrelationID string     `json:"correlationId,omitempty"`
	Error         string     `json:"error,omitempty"`
	ErrorClass    ErrorClass `json:"errorClass,omitempty"`
}

func encodeRequest(r Request) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("writechan: encode request: %w", err)
	}
	return b, nil
}

func decodeRequest(frame []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(frame, &r); err != nil {
		return Request{}, fmt.Errorf("writechan: decode request: %w", err)
	}
	return r, nil
}

func encodeResponse(r Response) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("writechan: encode response: %w", err)
	}
	return b, nil
}

func decodeResponse(frame []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(frame, &r); err != nil {
		return Response{}, fmt.Errorf("writechan: decode response: %w", err)
	}
	return r, nil
}

// Classify maps a write failure to its ErrorClass. A target locked by
// another writer counts as a permission failure.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, apperr.ErrPermissionDenied),
		errors.Is(err, syscall.EWOULDBLOCK),
		errors.Is(err, syscall.EAGAIN):
		return ClassPermission
	case errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EDQUOT),
		errors.Is(err, apperr.ErrQuotaExceeded):
		return ClassQuota
	case errors.Is(err, os.ErrClosed),
		errors.Is(err, syscall.EINVAL),
		errors.Is(err, apperr.ErrInvalidTarget):
		return ClassInvalidState
	default:
		return ClassUnknown
	}
}

// WriteError is a failed write as reported by the worker.
type WriteError struct {
	Target  string
	Class   ErrorClass
	Message string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writechan: write %s failed (%s): %s", e.Target, e.Class, e.Message)
}

// Unwrap exposes the sentinel matching the error class.
func (e *WriteError) Unwrap() error {
	switch e.Class {
	case ClassPermission:
		return apperr.ErrPermissionDenied
	case ClassQuota:
		return apperr.ErrQuotaExceeded
	case ClassInvalidState:
		return apperr.ErrInvalidTarget
	default:
		return nil
	}
}

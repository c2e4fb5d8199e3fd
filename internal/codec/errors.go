package codec

import (
	"fmt"

	"github.com/starford/outliner/internal/apperr"
)

// ParseError reports why text could not be read as an outline.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: parse: %s: %v", e.Reason, e.Err)
	}
	return "codec: parse: " + e.Reason
}

func (e *ParseError) Unwrap() []error { return []error{apperr.ErrParse, e.Err} }

// SerializeError reports that serialized output failed its own re-parse.
type SerializeError struct {
	Err error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("codec: serialize: output is not well-formed: %v", e.Err)
}

func (e *SerializeError) Unwrap() []error { return []error{apperr.ErrSerialize, e.Err} }

// Package storage defines the owned-store file abstraction and handles to
// externally owned outline files.
package storage

// Provider is the interface for owned-store file operations. Paths are
// relative to the store root.
type Provider interface {
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// WriteExclusive truncates and rewrites path in place while holding an
	// exclusive advisory lock on it.
	WriteExclusive(path string, content []byte) error
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/outliner/internal/apperr"
)

// Permission is the write permission state of an external file handle.
type Permission int

const (
	PermissionPrompt Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "prompt"
	}
}

// ExternalFile is a handle to a user-chosen file outside the owned store.
type ExternalFile interface {
	// Name returns the file's base name.
	Name() string
	// Path returns the location the handle points to.
	Path() string
	// QueryPermission reports the current write permission without asking.
	QueryPermission(ctx context.Context) (Permission, error)
	// RequestPermission asks for write permission, possibly prompting.
	RequestPermission(ctx context.Context) (Permission, error)
	// ReadAll returns the file's current content.
	ReadAll(ctx context.Context) ([]byte, error)
	// WriteAll truncates the file and writes content.
	WriteAll(ctx context.Context, content []byte) error
}

// Prompter decides whether write access to path is granted. It stands in for
// the interactive permission dialog.
type Prompter func(ctx context.Context, path string) bool

// LocalFile is an ExternalFile on the local file system.
type LocalFile struct {
	path   string
	prompt Prompter

	mu   sync.Mutex
	perm Permission
}

// OpenLocal returns a handle to path. A nil prompt grants every request.
func OpenLocal(path string, prompt Prompter) (*LocalFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", path, err)
	}
	if prompt == nil {
		prompt = func(context.Context, string) bool { return true }
	}
	return &LocalFile{path: abs, prompt: prompt}, nil
}

func (l *LocalFile) Name() string { return filepath.Base(l.path) }

func (l *LocalFile) Path() string { return l.path }

func (l *LocalFile) QueryPermission(context.Context) (Permission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perm, nil
}

func (l *LocalFile) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionPrompt, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perm != PermissionPrompt {
		return l.perm, nil
	}
	if l.prompt(ctx, l.path) {
		l.perm = PermissionGranted
	} else {
		l.perm = PermissionDenied
	}
	return l.perm, nil
}

func (l *LocalFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", l.path, mapFSError(err))
	}
	return data, nil
}

// WriteAll refuses to write unless permission was granted.
func (l *LocalFile) WriteAll(ctx context.Context, content []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p, _ := l.QueryPermission(ctx); p != PermissionGranted {
		return fmt.Errorf("storage: write %s: %w", l.path, apperr.ErrPermissionDenied)
	}
	fh, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", l.path, mapFSError(err))
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("storage: close %s: %w", l.path, cerr)
		}
	}()
	if _, err := fh.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", l.path, mapFSError(err))
	}
	return nil
}

func mapFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return errors.Join(apperr.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return errors.Join(apperr.ErrNotFound, err)
	default:
		return err
	}
}

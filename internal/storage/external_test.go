package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/outliner/internal/apperr"
)

func TestLocalFilePermissionFlow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Plan.bike")
	f, err := OpenLocal(path, nil)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	if f.Name() != "Plan.bike" {
		t.Errorf("Name = %q", f.Name())
	}
	if p, _ := f.QueryPermission(ctx); p != PermissionPrompt {
		t.Fatalf("initial permission = %v", p)
	}
	if err := f.WriteAll(ctx, []byte("x")); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("write without permission: %v", err)
	}
	if p, _ := f.RequestPermission(ctx); p != PermissionGranted {
		t.Fatalf("RequestPermission = %v", p)
	}
	if err := f.WriteAll(ctx, []byte("saved")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	got, err := f.ReadAll(ctx)
	if err != nil || string(got) != "saved" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
}

func TestLocalFileDeniedPrompt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "x.bike")
	f, _ := OpenLocal(path, func(context.Context, string) bool { return false })
	if p, _ := f.RequestPermission(ctx); p != PermissionDenied {
		t.Fatalf("RequestPermission = %v", p)
	}
	if err := f.WriteAll(ctx, []byte("x")); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("denied write must not create the file")
	}
}

func TestLocalFileReadMissing(t *testing.T) {
	f, _ := OpenLocal(filepath.Join(t.TempDir(), "gone.bike"), nil)
	if _, err := f.ReadAll(context.Background()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("ReadAll missing: %v", err)
	}
}

package recovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/outliner/internal/apperr"
)

func testStore(t *testing.T, quota int64) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recovery.db"), quota)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t, 0)
	var count int
	if err := s.conn.QueryRow(`SELECT count(*) FROM drafts`).Scan(&count); err != nil {
		t.Fatalf("drafts table missing: %v", err)
	}
}

func TestPutGetClear(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, 0)
	content := []byte(`<html><body><ul id="root"><li id="a"><p>draft</p></li></ul></body></html>`)

	if err := s.Put(ctx, DefaultKey, content); err != nil {
		t.Fatalf("Put: %v", err)
	}
	d, err := s.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(d.Content) != string(content) {
		t.Errorf("content = %q", d.Content)
	}
	if d.UpdatedAt.IsZero() || d.Checksum == "" {
		t.Errorf("draft metadata missing: %+v", d)
	}

	if err := s.Put(ctx, DefaultKey, []byte("second")); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	d, _ = s.Get(ctx, DefaultKey)
	if string(d.Content) != "second" {
		t.Errorf("overwrite lost: %q", d.Content)
	}

	if err := s.Clear(ctx, DefaultKey); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Get(ctx, DefaultKey); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after clear: %v", err)
	}
	if err := s.Clear(ctx, DefaultKey); err != nil {
		t.Errorf("Clear missing: %v", err)
	}
}

func TestQuotaExceededKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, 64)
	if err := s.Put(ctx, DefaultKey, []byte("small")); err != nil {
		t.Fatalf("Put small: %v", err)
	}

	// Distinct lines so zstd cannot squeeze the payload under the quota.
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "%d:%x\n", i, uint32(i)*2654435761)
	}
	err := s.Put(ctx, DefaultKey, []byte(b.String()))
	if !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	d, err := s.Get(ctx, DefaultKey)
	if err != nil || string(d.Content) != "small" {
		t.Errorf("previous draft lost: %v %v", d, err)
	}
}

func TestEmptyContent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, 0)
	if err := s.Put(ctx, DefaultKey, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	d, err := s.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(d.Content) != 0 {
		t.Errorf("content = %q", d.Content)
	}
}

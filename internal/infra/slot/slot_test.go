package slot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fraglink-io/fraglink/internal/app/store"
)

func TestMemory_EmptySlot(t *testing.T) {
	s := NewMemory()

	payload, version, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if payload != nil {
		t.Errorf("Load() payload = %q, want nil", payload)
	}
	if version != "" {
		t.Errorf("Load() version = %q, want empty", version)
	}
}

func TestMemory_WriteThenLoad(t *testing.T) {
	s := NewMemory()

	v1, err := s.Write(context.Background(), []byte(`[{"code":"a"}]`))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if v1 == "" {
		t.Fatal("Write() returned empty version")
	}

	payload, version, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(payload) != `[{"code":"a"}]` {
		t.Errorf("Load() payload = %q", payload)
	}
	if version != v1 {
		t.Errorf("Load() version = %q, want %q", version, v1)
	}
}

func TestMemory_CompareAndWrite(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	// Empty-slot expectation succeeds once.
	v1, err := s.CompareAndWrite(ctx, []byte("one"), "")
	if err != nil {
		t.Fatalf("CompareAndWrite(empty) error = %v", err)
	}
	if _, err := s.CompareAndWrite(ctx, []byte("again"), ""); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("CompareAndWrite(empty, occupied slot) error = %v, want conflict", err)
	}

	v2, err := s.CompareAndWrite(ctx, []byte("two"), v1)
	if err != nil {
		t.Fatalf("CompareAndWrite(v1) error = %v", err)
	}
	if v2 == v1 {
		t.Errorf("version did not advance: %q", v2)
	}

	// The old tag is now stale.
	if _, err := s.CompareAndWrite(ctx, []byte("three"), v1); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("CompareAndWrite(stale) error = %v, want conflict", err)
	}

	payload, _, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(payload) != "two" {
		t.Errorf("payload = %q, want %q", payload, "two")
	}
}

func TestMemory_LoadCopiesPayload(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.Write(ctx, []byte("abc")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	payload, _, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	payload[0] = 'X'

	again, _, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(again) != "abc" {
		t.Errorf("stored payload mutated through caller slice: %q", again)
	}
}

func TestFile_MissingFileIsEmptySlot(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "links.json"))

	payload, version, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if payload != nil || version != "" {
		t.Errorf("Load() = (%q, %q), want empty slot", payload, version)
	}
}

func TestFile_WriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "links.json")
	s := NewFile(path)
	ctx := context.Background()

	v1, err := s.Write(ctx, []byte(`[]`))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	payload, version, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(payload) != `[]` {
		t.Errorf("payload = %q", payload)
	}
	if version != v1 {
		t.Errorf("version = %q, want %q", version, v1)
	}
}

func TestFile_CompareAndWriteDetectsExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.json")
	s := NewFile(path)
	ctx := context.Background()

	v1, err := s.Write(ctx, []byte("one"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Another process rewrites the file behind our back.
	if err := os.WriteFile(path, []byte("elsewhere"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := s.CompareAndWrite(ctx, []byte("two"), v1); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("CompareAndWrite() error = %v, want conflict", err)
	}

	_, v2, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := s.CompareAndWrite(ctx, []byte("two"), v2); err != nil {
		t.Fatalf("CompareAndWrite(fresh) error = %v", err)
	}
}

func TestFile_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(filepath.Join(dir, "links.json"))

	for i := 0; i < 3; i++ {
		if _, err := s.Write(context.Background(), []byte("payload")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

package slot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fraglink-io/fraglink/internal/app/store"
)

// File persists the slot as a single local file, the closest server-side
// analog of the original browser-storage cell. Writes go through a temp file
// and rename so the overwrite is atomic at filesystem granularity; the
// version tag is a content hash, so a concurrent writer that changed the file
// between load and compare-and-write is detected.
type File struct {
	path string

	// mu serializes check-then-write within this process. Writers in other
	// processes are only guarded by the content-hash check.
	mu sync.Mutex
}

// NewFile returns a slot stored at path, creating parent directories on the
// first write.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) ([]byte, string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("slot: read %s: %w", f.path, err)
	}
	return data, contentHash(data), nil
}

func (f *File) Write(ctx context.Context, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeAtomic(payload); err != nil {
		return "", err
	}
	return contentHash(payload), nil
}

func (f *File) CompareAndWrite(ctx context.Context, payload []byte, expect string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := ""
	data, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		current = contentHash(data)
	case os.IsNotExist(err):
		// still empty
	default:
		return "", fmt.Errorf("slot: read %s: %w", f.path, err)
	}
	if current != expect {
		return "", store.ErrVersionConflict
	}

	if err := f.writeAtomic(payload); err != nil {
		return "", err
	}
	return contentHash(payload), nil
}

func (f *File) writeAtomic(payload []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("slot: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("slot: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("slot: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("slot: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("slot: rename into place: %w", err)
	}
	return nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

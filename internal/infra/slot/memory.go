// Package slot provides the persistence backends for the link collection's
// single storage cell: plain memory, a local file, a Redis hash, and a
// Postgres row. All of them speak the store.Slot contract, including its
// version-tag discipline for optimistic writes.
package slot

import (
	"context"
	"strconv"
	"sync"

	"github.com/fraglink-io/fraglink/internal/app/store"
)

// Memory keeps the slot in process memory. It backs tests and the throwaway
// dev backend.
type Memory struct {
	mu      sync.Mutex
	payload []byte
	version uint64
}

// NewMemory returns an empty in-memory slot.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payload == nil {
		return nil, "", nil
	}
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out, strconv.FormatUint(m.version, 10), nil
}

func (m *Memory) Write(ctx context.Context, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(payload), nil
}

func (m *Memory) CompareAndWrite(ctx context.Context, payload []byte, expect string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current() != expect {
		return "", store.ErrVersionConflict
	}
	return m.put(payload), nil
}

func (m *Memory) current() string {
	if m.payload == nil {
		return ""
	}
	return strconv.FormatUint(m.version, 10)
}

func (m *Memory) put(payload []byte) string {
	m.version++
	m.payload = make([]byte, len(payload))
	copy(m.payload, payload)
	return strconv.FormatUint(m.version, 10)
}

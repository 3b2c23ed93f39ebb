// Package store owns the durable collection of link records: a JSON array of
// LinkRecord objects living in a single slot of some key-value backend.
//
// The collection has no incremental persistence. Load deserializes the whole
// array, Save rewrites the whole array, and every record mutation is a
// load-modify-save of the full collection. Update wraps that cycle in an
// optimistic compare-and-write with bounded retry.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fraglink-io/fraglink/internal/app/model"
	"go.uber.org/zap"
)

// DefaultSaveRetries bounds how often Update replays its mutation after a
// version conflict before giving up.
const DefaultSaveRetries = 5

// Store is the durable home of the ordered link collection, newest first.
type Store struct {
	slot    Slot
	log     *zap.Logger
	retries int

	// mu serializes read-modify-write cycles within this process; the slot
	// version check covers writers in other processes.
	mu        sync.Mutex
	conflicts atomic.Int64
}

// New returns a store over the given slot. retries <= 0 selects
// DefaultSaveRetries.
func New(slot Slot, log *zap.Logger, retries int) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if retries <= 0 {
		retries = DefaultSaveRetries
	}
	return &Store{slot: slot, log: log, retries: retries}
}

// Load deserializes the persisted collection. Content failures are soft: a
// missing, empty, or malformed payload yields an empty collection and a log
// line, never an error. Transport failures of the backend are returned as
// errors so that an unreachable backend never reads as an empty store.
func (s *Store) Load(ctx context.Context) ([]model.LinkRecord, error) {
	payload, _, err := s.slot.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load slot: %w", err)
	}
	return s.decode(payload), nil
}

// Save serializes and persists the entire collection, overwriting any prior
// value. This is the unconditional write path of the store contract; callers
// that mutate loaded records should prefer Update.
func (s *Store) Save(ctx context.Context, records []model.LinkRecord) error {
	payload, err := encode(records)
	if err != nil {
		return err
	}
	if _, err := s.slot.Write(ctx, payload); err != nil {
		return fmt.Errorf("store: write slot: %w", err)
	}
	return nil
}

// Update runs one read-modify-write cycle: it loads the collection, applies
// mutate, and persists the result under a version check. mutate returns the
// replacement collection, whether anything changed, and an optional error
// that aborts the cycle. When the version check fails the cycle is replayed
// against the fresh collection, up to the retry bound.
//
// mutate must treat its input as immutable and build a new collection for
// any change; Update persists exactly what mutate returns.
func (s *Store) Update(ctx context.Context, mutate func(records []model.LinkRecord) ([]model.LinkRecord, bool, error)) ([]model.LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < s.retries; attempt++ {
		payload, version, err := s.slot.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: load slot: %w", err)
		}
		records := s.decode(payload)

		next, changed, err := mutate(records)
		if err != nil {
			return nil, err
		}
		if !changed {
			return records, nil
		}

		out, err := encode(next)
		if err != nil {
			return nil, err
		}
		if _, err := s.slot.CompareAndWrite(ctx, out, version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				s.conflicts.Add(1)
				s.log.Debug("slot version conflict, replaying mutation",
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, fmt.Errorf("store: write slot: %w", err)
		}
		return next, nil
	}

	return nil, fmt.Errorf("store: gave up after %d version conflicts: %w", s.retries, ErrVersionConflict)
}

// ConflictCount reports how many version conflicts Update has absorbed since
// startup. The expiry sweeper mirrors it into a gauge.
func (s *Store) ConflictCount() int64 {
	return s.conflicts.Load()
}

// FindByCode locates a record by exact, case-sensitive code match and returns
// its index. Uniqueness is enforced case-insensitively at creation time, but
// lookup during redirect compares the raw value.
func FindByCode(records []model.LinkRecord, code string) (int, bool) {
	for i := range records {
		if records[i].Code == code {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) decode(payload []byte) []model.LinkRecord {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return []model.LinkRecord{}
	}

	var records []model.LinkRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		s.log.Warn("persisted link collection is malformed, starting empty", zap.Error(err))
		return []model.LinkRecord{}
	}
	if records == nil {
		return []model.LinkRecord{}
	}
	for i := range records {
		if records[i].Visits == nil {
			records[i].Visits = []model.VisitRecord{}
		}
	}
	return records
}

func encode(records []model.LinkRecord) ([]byte, error) {
	if records == nil {
		records = []model.LinkRecord{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("store: encode collection: %w", err)
	}
	return payload, nil
}

package store

import (
	"context"
	"errors"
)

var (
	// ErrVersionConflict signals that the slot changed between load and
	// compare-and-write. Callers reload and retry.
	ErrVersionConflict = errors.New("store: slot version conflict")
)

// Slot is the single string-keyed persistence cell the link collection lives
// in. Implementations map it onto a file, a Redis hash, a Postgres row, or
// plain memory.
//
// Version tags are opaque strings; the empty tag means the slot holds no
// value. Write is the unconditional full overwrite the store contract calls
// for; CompareAndWrite is the optimistic variant used by read-modify-write
// cycles so concurrent writers cannot silently drop each other's updates.
type Slot interface {
	// Load returns the raw payload and its version tag. A missing value is
	// not an error: it comes back as (nil, "", nil).
	Load(ctx context.Context) (payload []byte, version string, err error)

	// Write overwrites the slot regardless of its current content and
	// returns the new version tag.
	Write(ctx context.Context, payload []byte) (string, error)

	// CompareAndWrite overwrites the slot only if its version still equals
	// expect ("" meaning "still empty"), returning ErrVersionConflict
	// otherwise.
	CompareAndWrite(ctx context.Context, payload []byte, expect string) (string, error)
}

package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldPayload = "payload"
	fieldVersion = "version"
)

// Redis keeps the slot in a Redis hash with payload and version fields. The
// compare-and-write path runs under WATCH so a competing writer aborts the
// transaction instead of being overwritten.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis returns a slot stored under key on the given client.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (r *Redis) Load(ctx context.Context) ([]byte, string, error) {
	vals, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, "", fmt.Errorf("slot: read %s: %w", r.key, err)
	}
	if len(vals) == 0 {
		return nil, "", nil
	}
	return []byte(vals[fieldPayload]), vals[fieldVersion], nil
}

func (r *Redis) Write(ctx context.Context, payload []byte) (string, error) {
	version := uuid.New().String()
	if err := r.client.HSet(ctx, r.key, fieldPayload, string(payload), fieldVersion, version).Err(); err != nil {
		return "", fmt.Errorf("slot: write %s: %w", r.key, err)
	}
	return version, nil
}

func (r *Redis) CompareAndWrite(ctx context.Context, payload []byte, expect string) (string, error) {
	version := uuid.New().String()

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, r.key, fieldVersion).Result()
		switch {
		case errors.Is(err, redis.Nil):
			current = ""
		case err != nil:
			return fmt.Errorf("slot: read version of %s: %w", r.key, err)
		}
		if current != expect {
			return store.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, fieldPayload, string(payload), fieldVersion, version)
			return nil
		})
		return err
	}, r.key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		// Key touched between WATCH and EXEC.
		return "", store.ErrVersionConflict
	case errors.Is(err, store.ErrVersionConflict):
		return "", store.ErrVersionConflict
	case err != nil:
		return "", fmt.Errorf("slot: write %s: %w", r.key, err)
	}
	return version, nil
}

package slot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is the schema of the slot table, one row per slot key. GORM migrates
// it at startup; the hot path below speaks SQL through pgx.
type Row struct {
	SlotKey string `gorm:"column:slot_key;primaryKey;size:128"`
	Payload string `gorm:"column:payload;type:text;not null"`
	Version int64  `gorm:"column:version;not null;default:0"`
}

// TableName pins the table GORM migrates and the queries below address.
func (Row) TableName() string {
	return "link_slots"
}

// Postgres keeps the slot in a single table row, using a version column for
// optimistic writes.
type Postgres struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgres returns a slot stored under key in the link_slots table.
func NewPostgres(pool *pgxpool.Pool, key string) *Postgres {
	return &Postgres{pool: pool, key: key}
}

func (p *Postgres) Load(ctx context.Context) ([]byte, string, error) {
	var payload string
	var version int64
	err := p.pool.QueryRow(ctx,
		`SELECT payload, version FROM link_slots WHERE slot_key = $1`,
		p.key,
	).Scan(&payload, &version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, "", nil
	case err != nil:
		return nil, "", fmt.Errorf("slot: read %s: %w", p.key, err)
	}
	return []byte(payload), strconv.FormatInt(version, 10), nil
}

func (p *Postgres) Write(ctx context.Context, payload []byte) (string, error) {
	var version int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO link_slots (slot_key, payload, version)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (slot_key)
		 DO UPDATE SET payload = EXCLUDED.payload, version = link_slots.version + 1
		 RETURNING version`,
		p.key, string(payload),
	).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("slot: write %s: %w", p.key, err)
	}
	return strconv.FormatInt(version, 10), nil
}

func (p *Postgres) CompareAndWrite(ctx context.Context, payload []byte, expect string) (string, error) {
	if expect == "" {
		var version int64
		err := p.pool.QueryRow(ctx,
			`INSERT INTO link_slots (slot_key, payload, version)
			 VALUES ($1, $2, 1)
			 ON CONFLICT (slot_key) DO NOTHING
			 RETURNING version`,
			p.key, string(payload),
		).Scan(&version)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Row appeared since the load.
			return "", store.ErrVersionConflict
		case err != nil:
			return "", fmt.Errorf("slot: insert %s: %w", p.key, err)
		}
		return strconv.FormatInt(version, 10), nil
	}

	expected, err := strconv.ParseInt(expect, 10, 64)
	if err != nil {
		return "", fmt.Errorf("slot: bad version tag %q: %w", expect, err)
	}

	var version int64
	err = p.pool.QueryRow(ctx,
		`UPDATE link_slots
		 SET payload = $2, version = version + 1
		 WHERE slot_key = $1 AND version = $3
		 RETURNING version`,
		p.key, string(payload), expected,
	).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", store.ErrVersionConflict
	case err != nil:
		return "", fmt.Errorf("slot: update %s: %w", p.key, err)
	}
	return strconv.FormatInt(version, 10), nil
}

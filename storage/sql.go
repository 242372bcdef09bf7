package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type slotRecord struct {
	bun.BaseModel `bun:"table:session_slots,alias:ss"`

	Key       string    `bun:"slot_key,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQL keeps slots in a single table through bun. Any bun dialect works;
// OpenSQLite covers the local desktop case.
type SQL struct {
	db  *bun.DB
	now func() time.Time
}

var _ Backend = (*SQL)(nil)

// NewSQL ensures the slot table exists.
func NewSQL(ctx context.Context, db *bun.DB) (*SQL, error) {
	if _, err := db.NewCreateTable().
		Model((*slotRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session_slots table: %w", err)
	}
	return &SQL{db: db, now: time.Now}, nil
}

// OpenSQLite opens (or creates) a sqlite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQL, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps in-memory databases shared across calls
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	store, err := NewSQL(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// DB exposes the underlying handle.
func (s *SQL) DB() *bun.DB {
	return s.db
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	rec := new(slotRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("slot_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select slot %s: %w", key, err)
	}
	return rec.Value, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	rec := &slotRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (slot_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := s.db.NewDelete().
		Model((*slotRecord)(nil)).
		Where("slot_key = ?", key).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete slot %s: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (s *SQL) Close() error {
	return s.db.Close()
}

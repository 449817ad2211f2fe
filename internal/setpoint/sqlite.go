package setpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteBackend stores records in the setpoints table.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates a backend on an open, migrated database.
func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Read implements Backend.
func (b *SQLiteBackend) Read(ctx context.Context, slot Slot) ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM setpoints WHERE slot = ?`, int64(slot)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying slot %d: %w", slot, err)
	}
	return data, true, nil
}

// Write implements Backend.
func (b *SQLiteBackend) Write(ctx context.Context, slot Slot, data []byte) error {
	const query = `INSERT INTO setpoints (slot, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := b.db.ExecContext(ctx, query, int64(slot), data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting slot %d: %w", slot, err)
	}
	return nil
}

// Close is a no-op; the database is owned by the caller.
func (b *SQLiteBackend) Close() error {
	return nil
}

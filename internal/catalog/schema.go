package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in SQLite's user_version. A catalog written with a
// different layout is rejected rather than migrated; it can be rebuilt from
// the streams with serialize.
const schemaVersion = 2

// ErrSchemaMismatch is returned when the catalog file has another layout.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read catalog version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version == 0 && s.readOnly:
		return fmt.Errorf("%w: %s has no catalog tables", ErrSchemaMismatch, s.path)
	case version == 0:
		return s.createSchema(ctx)
	default:
		return fmt.Errorf("%w: %s is version %d, want %d (remove it and serialize again)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create catalog tables: %w", err)
	}
	// PRAGMA takes no bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set catalog version: %w", err)
	}
	return tx.Commit()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// journalVersion is the only layout this build reads and writes. There is no
// upgrade path: a journal stamped with any other version is refused.
const journalVersion = 1

// ensureSchema creates the journal tables on first use and checks the
// version stamp on every later open.
func ensureSchema(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	version, found, err := storedVersion(ctx, tx)
	if err != nil {
		return err
	}
	if !found {
		_, err = tx.ExecContext(ctx, "INSERT INTO metadata(key, value) VALUES('schema_version', ?)", strconv.Itoa(journalVersion))
		if err != nil {
			return fmt.Errorf("stamp schema version: %w", err)
		}
	} else if version != journalVersion {
		return fmt.Errorf("unsupported journal schema version %d (want %d)", version, journalVersion)
	}

	return tx.Commit()
}

func storedVersion(ctx context.Context, tx *sql.Tx) (version int, found bool, err error) {
	var raw string
	err = tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	version, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return version, true, nil
}

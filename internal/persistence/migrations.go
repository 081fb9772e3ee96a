package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// Each entry migrates the schema one version up. PRAGMA user_version tracks
// the applied count, so append-only changes here pick up existing databases.
var migrations = [][]string{
	{
		`CREATE TABLE clips (
			local_id INTEGER PRIMARY KEY AUTOINCREMENT,
			body TEXT NOT NULL,
			origin INTEGER NOT NULL,
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX clips_at_idx ON clips(at DESC);`,
		`CREATE TABLE endpoints (
			host TEXT NOT NULL,
			port INTEGER NOT NULL,
			last_used_at INTEGER NOT NULL,
			PRIMARY KEY (host, port)
		);`,
		`CREATE INDEX endpoints_last_used_at_idx ON endpoints(last_used_at DESC);`,
	},
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	for ; version < len(migrations); version++ {
		if err := applyMigration(ctx, db, version); err != nil {
			return fmt.Errorf("apply schema migration to v%d: %w", version+1, err)
		}
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range migrations[version] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, version+1)); err != nil {
		return fmt.Errorf("bump schema version: %w", err)
	}

	return tx.Commit()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change within a named group.
// Versions are scoped to the group, so each package numbers its own
// migrations from 1.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// RunMigrations applies the pending migrations for a group, tracking
// applied versions in the schema_migrations table. Each migration runs
// in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, group string, migrations []Migration) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			migration_group VARCHAR(64) NOT NULL,
			version INT NOT NULL,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (migration_group, version)
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT version FROM schema_migrations WHERE migration_group = $1`, group)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s/%d: %w", group, m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s/%d (%s): %w", group, m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (migration_group, version, description) VALUES ($1, $2, $3)`,
			group, m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s/%d: %w", group, m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s/%d: %w", group, m.Version, err)
		}
	}
	return nil
}

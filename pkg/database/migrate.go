package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schemaSQL
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Migrate applies the schema on the store's connection.
func (db *PostgresDatabase) Migrate(ctx context.Context) error {
	return Migrate(ctx, db.db)
}

// Tables lists the tables the schema creates, in creation order.
var Tables = []string{"organizations", "profiles", "user_organizations", "tasks", "workstreams", "workstream_entries", "files"}

// TableCounts returns the row count of every schema table. A missing
// table is reported as an error.
func (db *PostgresDatabase) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var n int64
		// table names come from Tables, never from input
		if err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to query table %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

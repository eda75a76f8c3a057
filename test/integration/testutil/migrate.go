//go:build integration

package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vyakaran/platform/internal/infra"
)

// runMigrations brings the test database to the latest schema using the same
// migrator the api binary runs at startup.
func runMigrations() error {
	m, err := infra.NewMigrator("", testDSN(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	if _, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("test schema is dirty; drop %s and rerun", TestDBName)
	}
	return nil
}

// appTables lists the tables the migrations created, leaving out the
// migrator's own bookkeeping table.
func appTables(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		  AND table_name <> 'schema_migrations'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

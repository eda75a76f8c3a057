//go:build integration

package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// CleanAll truncates every migrated table in one statement, so new tables are
// covered as soon as a migration adds them.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables, err := appTables(ctx, env.Pool)
	if err != nil {
		env.t.Fatalf("CleanAll: %v", err)
	}
	if len(tables) == 0 {
		return
	}
	quoted := make([]string, len(tables))
	for i, name := range tables {
		quoted[i] = pgx.Identifier{name}.Sanitize()
	}
	if _, err := env.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(quoted, ", ")+" CASCADE"); err != nil {
		env.t.Fatalf("CleanAll: truncate: %v", err)
	}
}

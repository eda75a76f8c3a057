package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsPath is where the schema lives relative to the module root.
var migrationsPath = filepath.Join("db", "migrations")

// migrateLogger forwards golang-migrate progress to slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}

// NewMigrator opens the game state schema migrations in dir against dsn.
// An empty dir is resolved with FindMigrationDir.
func NewMigrator(dir, dsn string, logger *slog.Logger) (*migrate.Migrate, error) {
	if dir == "" {
		var err error
		if dir, err = FindMigrationDir(""); err != nil {
			return nil, err
		}
	}
	m, err := migrate.New("file://"+filepath.ToSlash(dir), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator for %s: %w", dir, err)
	}
	m.Log = migrateLogger{logger: logger}
	return m, nil
}

// RunMigrations applies pending migrations and refuses to continue on a dirty schema.
func RunMigrations(cfg *Config, logger *slog.Logger) error {
	m, err := NewMigrator(cfg.MigrationsDir, cfg.DSN(), logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d; fix it with the migrate CLI", version)
	}
	logger.Info("migrations applied", "version", version)
	return nil
}

// FindMigrationDir walks up from start (the working directory when empty)
// until it finds db/migrations.
func FindMigrationDir(start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		start = wd
	}
	dir := start
	for {
		candidate := filepath.Join(dir, migrationsPath)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory above %s", migrationsPath, start)
		}
		dir = parent
	}
}

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"stockdesk/internal/config"
	"stockdesk/internal/db"
)

// advisoryLockKey serializes concurrent migrator runs against one database.
const advisoryLockKey = 8217463

const migrationsDir = "migrations"

// migration is one discovered NNN_description.sql file, checksummed so a
// previously applied file that has since been edited is detected and refused.
type migration struct {
	version  string
	filename string
	checksum string
	sql      string
}

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := run(ctx, pool, log); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !locked {
		return errors.New("another migrator run holds the advisory lock")
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	migrations, err := discoverMigrations()
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		ok, err := apply(ctx, pool, m)
		if err != nil {
			return err
		}
		if ok {
			log.WithField("migration", m.filename).Info("migration applied")
			applied++
		} else {
			log.WithField("migration", m.filename).Debug("migration already applied")
		}
	}

	log.WithFields(logrus.Fields{
		"discovered": len(migrations),
		"applied":    applied,
	}).Info("migrations up to date")
	return nil
}

// discoverMigrations reads the migrations directory and returns its .sql
// files sorted by filename, rejecting duplicate version prefixes.
func discoverMigrations() ([]migration, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", migrationsDir, err)
	}

	seen := make(map[string]string)
	var migrations []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, found := strings.Cut(name, "_")
		if !found || version == "" {
			return nil, fmt.Errorf("migration %s does not match NNN_description.sql", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("version %s claimed by both %s and %s", version, prev, name)
		}
		seen[version] = name

		body, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		migrations = append(migrations, migration{
			version:  version,
			filename: name,
			checksum: hex.EncodeToString(sum[:]),
			sql:      string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].filename < migrations[j].filename })
	return migrations, nil
}

// apply runs one migration in its own transaction and records it. Returns
// false without error when the identical file was applied before.
func apply(ctx context.Context, pool *pgxpool.Pool, m migration) (bool, error) {
	var existing string
	err := pool.QueryRow(ctx,
		"SELECT checksum FROM schema_migrations WHERE version = $1", m.version).Scan(&existing)
	switch {
	case err == nil:
		if existing != m.checksum {
			return false, fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", m.filename, existing, m.checksum)
		}
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("failed to query schema_migrations for %s: %w", m.filename, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for %s: %w", m.filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return false, fmt.Errorf("failed to execute %s: %w", m.filename, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		m.version, m.filename, m.checksum); err != nil {
		return false, fmt.Errorf("failed to record %s: %w", m.filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit %s: %w", m.filename, err)
	}
	return true, nil
}

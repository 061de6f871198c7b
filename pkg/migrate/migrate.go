// Package migrate applies versioned SQL migrations to a database/sql handle
// and records the applied version in a tracking table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest selects the highest available migration in MigrateTo.
const Latest = -1

// ErrNoSQL is returned when a migration lacks the SQL for a direction.
var ErrNoSQL = errors.New("migration has no SQL for this direction")

// Migration is one schema version.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Source lists the available migrations.
type Source interface {
	Migrations() ([]Migration, error)
}

// Migrator runs migrations from a Source against db.
type Migrator struct {
	db     *sql.DB
	source Source
	table  string
	logger *zap.SugaredLogger
}

// NewMigrator creates a migrator tracking versions in table. An empty table
// name selects schema_migrations.
func NewMigrator(db *sql.DB, source Source, table string, logger *zap.SugaredLogger) *Migrator {
	if table == "" {
		table = "schema_migrations"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, source: source, table: table, logger: logger}
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, Latest)
}

// MigrateTo moves the schema up or down to target.
func (m *Migrator) MigrateTo(ctx context.Context, target int) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	migrations, err := m.sorted()
	if err != nil {
		return err
	}
	if target == Latest {
		target = 0
		if len(migrations) > 0 {
			target = migrations[len(migrations)-1].Version
		}
	}

	if target < current {
		return m.MigrateDown(ctx, target)
	}
	for _, mig := range migrations {
		if mig.Version > current && mig.Version <= target {
			if err := m.apply(ctx, mig, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// MigrateDown reverts migrations newer than target.
func (m *Migrator) MigrateDown(ctx context.Context, target int) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}
	migrations, err := m.sorted()
	if err != nil {
		return err
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version > target && mig.Version <= current {
			if err := m.apply(ctx, mig, false); err != nil {
				return fmt.Errorf("failed to roll back migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// Version returns the highest applied version, 0 for a fresh database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var v int
	q := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", m.table)
	if err := m.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// Pending returns the migrations newer than the applied version.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := m.sorted()
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func (m *Migrator) sorted() ([]Migration, error) {
	migrations, err := m.source.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`, m.table)
	if _, err := m.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// apply runs one migration and its version bookkeeping in a transaction.
func (m *Migrator) apply(ctx context.Context, mig Migration, up bool) error {
	stmt, direction := mig.Up, "up"
	if !up {
		stmt, direction = mig.Down, "down"
	}
	if stmt == "" {
		return fmt.Errorf("%w: %d %s", ErrNoSQL, mig.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if up {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO %s (version) VALUES (?)", m.table), mig.Version)
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version >= ?", m.table), mig.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}

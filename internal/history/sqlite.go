package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/chrissnell/spmanalyzer/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// MigrationTable tracks the applied SQLite schema version.
const MigrationTable = "history_migrations"

// SQLiteMigrator returns a migrator for the history schema of db.
func SQLiteMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSSource(sqliteMigrations, "migrations/sqlite"), MigrationTable, logger)
}

// SQLiteStore keeps history in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if err := SQLiteMigrator(db, nil).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record inserts e.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	var params sql.NullString
	if len(e.Parameters) > 0 {
		params = sql.NullString{String: string(e.Parameters), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_history
		 (id, session_id, file_key, operation, parameters, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.FileKey, e.Operation, params, e.DurationMS, e.Error,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, file_key, operation, parameters, duration_ms, error, created_at
		 FROM analysis_history ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var params, errText sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FileKey, &e.Operation, &params, &e.DurationMS, &errText, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if params.Valid {
			e.Parameters = []byte(params.String)
		}
		e.Error = errText.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package history

import (
	"context"
	"fmt"

	"github.com/chrissnell/spmanalyzer/internal/database"
	"gorm.io/gorm"
)

// PostgresStore keeps history in PostgreSQL through GORM.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to dsn and migrates the history table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := database.CreateConnection(ctx, dsn, database.Options{MaxOpenConns: 4})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Record inserts e.
func (p *PostgresStore) Record(ctx context.Context, e Entry) error {
	if err := p.db.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (p *PostgresStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	entries := []Entry{}
	if n <= 0 {
		return entries, nil
	}
	err := p.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(n).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entries, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

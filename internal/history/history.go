// Package history records the analyses served by the API so recent work can
// be listed and audited.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/spmanalyzer/pkg/config"
	"github.com/google/uuid"
)

// Entry is one recorded analysis.
type Entry struct {
	ID         string          `json:"id" gorm:"primaryKey;column:id"`
	SessionID  string          `json:"session_id" gorm:"column:session_id;index"`
	FileKey    string          `json:"file_key" gorm:"column:file_key"`
	Operation  string          `json:"operation" gorm:"column:operation;index"`
	Parameters json.RawMessage `json:"parameters,omitempty" gorm:"column:parameters;type:jsonb"`
	DurationMS float64         `json:"duration_ms" gorm:"column:duration_ms"`
	Error      string          `json:"error,omitempty" gorm:"column:error"`
	CreatedAt  time.Time       `json:"created_at" gorm:"column:created_at;index"`
}

// TableName sets the table used by GORM.
func (Entry) TableName() string {
	return "analysis_history"
}

// NewEntry fills in an id and timestamp. params is marshalled to JSON; a
// value that cannot be marshalled is recorded as null.
func NewEntry(sessionID, fileKey, operation string, params any, d time.Duration, err error) Entry {
	e := Entry{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		FileKey:    fileKey,
		Operation:  operation,
		DurationMS: float64(d.Microseconds()) / 1000,
		CreatedAt:  time.Now().UTC(),
	}
	if params != nil {
		if raw, mErr := json.Marshal(params); mErr == nil {
			e.Parameters = raw
		}
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Store persists entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

func (Nop) Close() error { return nil }

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg config.HistoryData) (Store, error) {
	switch cfg.Backend {
	case config.HistorySQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.HistoryPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case config.HistoryNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Record is one published command. Records are write-once.
type Record struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
}

// Repository is the command audit log.
type Repository interface {
	Append(ctx context.Context, r *Record) error
	List(ctx context.Context, limit int) ([]Record, error)
}

// SQLiteRepository implements Repository on the command_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a command log backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts rec. A zero Timestamp is replaced with the current UTC time.
func (r *SQLiteRepository) Append(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("command record is required")
	}
	if rec.Topic == "" {
		return fmt.Errorf("command topic is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO command_log (timestamp, topic, payload) VALUES (?, ?, ?)",
		database.FormatTime(rec.Timestamp), rec.Topic, string(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading command record id: %w", err)
	}
	rec.ID = id
	return nil
}

// List returns the most recent records, newest first.
// limit defaults to 50 and is capped at 500.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, topic, payload
		 FROM command_log
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var timestamp, payload string
		if err := rows.Scan(&rec.ID, &timestamp, &rec.Topic, &payload); err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}
		rec.Timestamp, err = database.ParseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("command record %d: %w", rec.ID, err)
		}
		rec.Payload = json.RawMessage(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}
	return records, nil
}

package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
)

// Repository is the append-only settings log.
type Repository interface {
	// Latest returns the authoritative record, or ErrNoSettings.
	Latest(ctx context.Context) (*State, error)

	// Append stores s as the new authoritative record and sets its ID.
	Append(ctx context.Context, s *State) error
}

// SQLiteRepository implements Repository on the settings table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a settings log backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Latest returns the newest record by (timestamp, id).
func (r *SQLiteRepository) Latest(ctx context.Context) (*State, error) {
	var s State
	var timestamp string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, target_temp, lamp_state, pid_p, pid_i, pid_d
		 FROM settings
		 ORDER BY timestamp DESC, id DESC
		 LIMIT 1`,
	).Scan(&s.ID, &timestamp, &s.TargetTemp, &s.LampState, &s.PIDP, &s.PIDI, &s.PIDD)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSettings
	}
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}

	s.Timestamp, err = database.ParseTime(timestamp)
	if err != nil {
		return nil, fmt.Errorf("settings %d: %w", s.ID, err)
	}
	return &s, nil
}

// Append inserts s. A zero Timestamp is replaced with the current UTC time.
func (r *SQLiteRepository) Append(ctx context.Context, s *State) error {
	if s == nil {
		return fmt.Errorf("settings state is required")
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	s.Timestamp = s.Timestamp.UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (timestamp, target_temp, lamp_state, pid_p, pid_i, pid_d)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		database.FormatTime(s.Timestamp),
		s.TargetTemp, s.LampState, s.PIDP, s.PIDI, s.PIDD,
	)
	if err != nil {
		return fmt.Errorf("inserting settings: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading settings id: %w", err)
	}
	s.ID = id
	return nil
}

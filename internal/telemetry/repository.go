package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
)

const (
	// DefaultRangeLimit is the number of samples Range returns when the
	// query does not set a limit.
	DefaultRangeLimit = 1000

	// MaxRangeLimit caps Query.Limit.
	MaxRangeLimit = 10000
)

// Query selects a window of the telemetry log. Nil bounds are open; both
// bounds are inclusive.
type Query struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Repository is the append-only telemetry log.
type Repository interface {
	// Append stores s and sets its ID.
	Append(ctx context.Context, s *Sample) error

	// Range returns the newest Limit samples inside the window, in
	// ascending timestamp order.
	Range(ctx context.Context, q Query) ([]Sample, error)

	// Latest returns the most recent sample, or ErrNoSamples.
	Latest(ctx context.Context) (*Sample, error)

	// Prune deletes samples older than before and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository implements Repository on the telemetry_samples table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a telemetry log backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sampleColumns = `id, timestamp, temperature, od_value, pump_speed,
	target_temp, pid_p, pid_i, pid_d, lamp_state`

// Append inserts s. A zero Timestamp is replaced with the current UTC time.
func (r *SQLiteRepository) Append(ctx context.Context, s *Sample) error {
	if s == nil {
		return fmt.Errorf("sample is required")
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	s.Timestamp = s.Timestamp.UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO telemetry_samples (timestamp, temperature, od_value, pump_speed,
			target_temp, pid_p, pid_i, pid_d, lamp_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		database.FormatTime(s.Timestamp),
		s.Temperature, s.OpticalDensity, s.PumpSpeed,
		s.TargetTemp, s.PIDP, s.PIDI, s.PIDD,
		s.LampState,
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading telemetry sample id: %w", err)
	}
	s.ID = id
	return nil
}

// Range returns samples within q, newest Limit first selected, then
// reordered oldest first.
func (r *SQLiteRepository) Range(ctx context.Context, q Query) ([]Sample, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultRangeLimit
	}
	if limit > MaxRangeLimit {
		limit = MaxRangeLimit
	}

	var conditions []string
	var args []any
	if q.From != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, database.FormatTime(*q.From))
	}
	if q.To != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, database.FormatTime(*q.To))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT %s FROM telemetry_samples %s ORDER BY timestamp DESC, id DESC LIMIT ?",
		sampleColumns, where,
	)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry samples: %w", err)
	}
	defer rows.Close()

	samples := make([]Sample, 0)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry samples: %w", err)
	}

	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Latest returns the newest sample by (timestamp, id).
func (r *SQLiteRepository) Latest(ctx context.Context) (*Sample, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sampleColumns+" FROM telemetry_samples ORDER BY timestamp DESC, id DESC LIMIT 1",
	)
	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSamples
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Prune deletes samples stamped strictly before the cutoff.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM telemetry_samples WHERE timestamp < ?",
		database.FormatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting telemetry samples: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (Sample, error) {
	var s Sample
	var timestamp string
	err := row.Scan(&s.ID, &timestamp,
		&s.Temperature, &s.OpticalDensity, &s.PumpSpeed,
		&s.TargetTemp, &s.PIDP, &s.PIDI, &s.PIDD,
		&s.LampState,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Sample{}, err
	}
	if err != nil {
		return Sample{}, fmt.Errorf("scanning telemetry sample: %w", err)
	}

	s.Timestamp, err = database.ParseTime(timestamp)
	if err != nil {
		return Sample{}, fmt.Errorf("telemetry sample %d: %w", s.ID, err)
	}
	return s, nil
}

package telemetry

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/mussel-core/internal/device"
)

func appendAt(t *testing.T, repo *SQLiteRepository, ts time.Time, temp float64) Sample {
	t.Helper()
	s := Sample{Timestamp: ts, Status: Status{Temperature: float(temp)}}
	if err := repo.Append(context.Background(), &s); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return s
}

func TestSQLiteRepository_AppendAndLatest(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("Latest() on empty log error = %v, want ErrNoSamples", err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	in := Sample{
		Timestamp: ts,
		Status: Status{
			Temperature:    float(24.5),
			OpticalDensity: float(0.82),
			PIDP:           float(1.5),
			LampState:      device.LampOn.Ptr(),
		},
	}
	if err := repo.Append(ctx, &in); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if in.ID == 0 {
		t.Error("Append() did not set ID")
	}

	got, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.ID != in.ID || !got.Timestamp.Equal(ts) {
		t.Errorf("Latest() = id %d at %v, want id %d at %v", got.ID, got.Timestamp, in.ID, ts)
	}
	if *got.Temperature != 24.5 || *got.OpticalDensity != 0.82 || *got.PIDP != 1.5 {
		t.Errorf("readings = %+v", got.Status)
	}
	if got.PumpSpeed != nil || got.TargetTemp != nil || got.PIDI != nil || got.PIDD != nil {
		t.Error("absent readings came back present")
	}
	if got.LampState == nil || *got.LampState != device.LampOn {
		t.Errorf("LampState = %v, want ON", got.LampState)
	}
}

func TestSQLiteRepository_LatestBreaksTiesByInsertOrder(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	appendAt(t, repo, ts, 1)
	second := appendAt(t, repo, ts, 2)

	got, err := repo.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("Latest() id = %d, want %d", got.ID, second.ID)
	}
}

func TestSQLiteRepository_Range(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		appendAt(t, repo, base.Add(time.Duration(i)*time.Hour), float64(i))
	}

	temps := func(samples []Sample) []float64 {
		out := make([]float64, len(samples))
		for i, s := range samples {
			out[i] = *s.Temperature
		}
		return out
	}
	equal := func(a, b []float64) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	from := base.Add(2 * time.Hour)
	to := base.Add(5 * time.Hour)

	tests := []struct {
		name  string
		query Query
		want  []float64
	}{
		{"all ascending", Query{}, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"limit keeps newest", Query{Limit: 3}, []float64{7, 8, 9}},
		{"from inclusive", Query{From: &from, Limit: 2}, []float64{8, 9}},
		{"window inclusive", Query{From: &from, To: &to}, []float64{2, 3, 4, 5}},
		{"to only", Query{To: &from}, []float64{0, 1, 2}},
		{"empty window", Query{From: &to, To: &from}, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Range(ctx, tt.query)
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			if got == nil {
				t.Fatal("Range() returned nil slice")
			}
			if !equal(temps(got), tt.want) {
				t.Errorf("Range() temps = %v, want %v", temps(got), tt.want)
			}
		})
	}
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	appendAt(t, repo, base, 1)
	appendAt(t, repo, base.Add(time.Hour), 2)
	kept := appendAt(t, repo, base.Add(2*time.Hour), 3)

	n, err := repo.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() deleted %d, want 2", n)
	}

	left, err := repo.Range(ctx, Query{})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(left) != 1 || left[0].ID != kept.ID {
		t.Errorf("remaining samples = %+v", left)
	}
}

func TestSQLiteRepository_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO telemetry_samples")).WillReturnError(boom)
	if err := repo.Append(ctx, &Sample{}); !errors.Is(err, boom) {
		t.Errorf("Append() error = %v, want wrapped %v", err, boom)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM telemetry_samples")).WillReturnError(boom)
	if _, err := repo.Range(ctx, Query{}); !errors.Is(err, boom) {
		t.Errorf("Range() error = %v, want wrapped %v", err, boom)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM telemetry_samples")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "timestamp", "temperature", "od_value", "pump_speed",
			"target_temp", "pid_p", "pid_i", "pid_d", "lamp_state",
		}).AddRow(1, "not-a-time", nil, nil, nil, nil, nil, nil, nil, nil))
	if _, err := repo.Latest(ctx); err == nil || errors.Is(err, ErrNoSamples) {
		t.Errorf("Latest() with corrupt timestamp error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

package command

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
	_ "github.com/nerrad567/mussel-core/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "commands.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_AppendAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, payload := range []string{`{"target_temp":26}`, `{"lamp_state":"ON"}`, `{"pid_p":1.5}`} {
		rec := Record{Timestamp: base.Add(time.Duration(i) * time.Minute), Topic: "mussel/command", Payload: []byte(payload)}
		if err := repo.Append(ctx, &rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if rec.ID == 0 {
			t.Error("Append() did not set ID")
		}
	}

	records, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List(2) returned %d records", len(records))
	}
	if string(records[0].Payload) != `{"pid_p":1.5}` || string(records[1].Payload) != `{"lamp_state":"ON"}` {
		t.Errorf("List() not newest first: %s, %s", records[0].Payload, records[1].Payload)
	}
	if !records[0].Timestamp.Equal(base.Add(2*time.Minute)) || records[0].Topic != "mussel/command" {
		t.Errorf("record = %+v", records[0])
	}

	all, err := repo.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("List(0) = %d records, %v", len(all), err)
	}
}

func TestSQLiteRepository_ListEmpty(t *testing.T) {
	records, err := setupTestRepo(t).List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", records)
	}
}

func TestSQLiteRepository_AppendValidation(t *testing.T) {
	repo := setupTestRepo(t)
	if err := repo.Append(context.Background(), nil); err == nil {
		t.Error("Append(nil) should fail")
	}
	if err := repo.Append(context.Background(), &Record{Payload: []byte(`{}`)}); err == nil {
		t.Error("Append() without topic should fail")
	}
}

func TestSQLiteRepository_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := NewSQLiteRepository(db)
	boom := errors.New("disk I/O error")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO command_log")).
		WithArgs(sqlmock.AnyArg(), "mussel/command", `{"pid_i":2}`).
		WillReturnError(boom)
	err = repo.Append(context.Background(), &Record{Topic: "mussel/command", Payload: []byte(`{"pid_i":2}`)})
	if !errors.Is(err, boom) {
		t.Errorf("Append() error = %v, want wrapped %v", err, boom)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM command_log")).WithArgs(defaultListLimit).WillReturnError(boom)
	if _, err := repo.List(context.Background(), -1); !errors.Is(err, boom) {
		t.Errorf("List() error = %v, want wrapped %v", err, boom)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

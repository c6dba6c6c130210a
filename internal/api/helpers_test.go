package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/nerrad567/mussel-core/migrations"

	"github.com/nerrad567/mussel-core/internal/command"
	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
	"github.com/nerrad567/mussel-core/internal/infrastructure/logging"
	"github.com/nerrad567/mussel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/mussel-core/internal/settings"
	"github.com/nerrad567/mussel-core/internal/telemetry"
)

const testCommandTopic = "mussel/command"

// published is one message seen by fakePublisher.
type published struct {
	topic   string
	payload []byte
	qos     byte
}

// fakePublisher records publishes and fails them while err is set.
type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, payload: append([]byte(nil), payload...), qos: qos})
	return nil
}

func (p *fakePublisher) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

// fakeBroker satisfies BrokerStatus.
type fakeBroker struct {
	err error
}

func (b fakeBroker) IsConnected() bool                   { return b.err == nil }
func (b fakeBroker) HealthCheck(_ context.Context) error { return b.err }

// fixture is a Server wired to real SQLite repositories and a fake broker.
type fixture struct {
	srv       *Server
	router    http.Handler
	db        *database.DB
	cache     *telemetry.Cache
	samples   *telemetry.SQLiteRepository
	commands  *command.SQLiteRepository
	publisher *fakePublisher
	metrics   *metrics.Collectors
}

type fixtureOption func(*Deps)

func withBroker(b BrokerStatus) fixtureOption {
	return func(d *Deps) { d.MQTT = b }
}

func withAllowedOrigins(origins ...string) fixtureOption {
	return func(d *Deps) { d.Config.CORS.AllowedOrigins = origins }
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	log := testLogger()
	collectors := metrics.New()
	cache := telemetry.NewCache()
	samples := telemetry.NewSQLiteRepository(db.DB)
	commands := command.NewSQLiteRepository(db.DB)
	publisher := &fakePublisher{}

	dispatcher := command.NewDispatcher(publisher, commands, command.DispatcherConfig{
		Topic:           testCommandTopic,
		QoS:             1,
		BreakerFailures: 5,
		BreakerOpen:     time.Minute,
	}, log)
	dispatcher.SetMetrics(collectors)

	engine := settings.NewEngine(settings.NewSQLiteRepository(db.DB), dispatcher, log)
	engine.SetMetrics(collectors)

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:        testWSConfig(),
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger:    log,
		DB:        db,
		MQTT:      fakeBroker{},
		Cache:     cache,
		Telemetry: samples,
		Settings:  engine,
		Commands:  commands,
		Collector: collectors,
		Breaker:   dispatcher,
		Version:   "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &fixture{
		srv:       srv,
		router:    srv.buildRouter(),
		db:        db,
		cache:     cache,
		samples:   samples,
		commands:  commands,
		publisher: publisher,
		metrics:   collectors,
	}
}

// do sends a request through the router and returns the recorder.
func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) Error {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	var e Error
	decodeBody(t, w, &e)
	if e.Code != code {
		t.Errorf("code = %q, want %q", e.Code, code)
	}
	return e
}

func float(v float64) *float64 { return &v }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBrokerDown = errors.New("broker unreachable")

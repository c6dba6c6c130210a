package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/mussel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/mussel-core/internal/settings"
)

const (
	defaultBreakerFailures = 3
	defaultBreakerOpen     = 30 * time.Second
)

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher sends a payload to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DispatcherConfig controls where commands go and when the breaker trips.
type DispatcherConfig struct {
	Topic string
	QoS   byte

	// BreakerFailures is the number of consecutive publish failures that
	// opens the breaker.
	BreakerFailures uint32

	// BreakerOpen is how long the breaker stays open before a trial publish.
	BreakerOpen time.Duration
}

// Dispatcher publishes settings diffs as device commands.
//
// Thread Safety: Dispatch is safe for concurrent use.
type Dispatcher struct {
	publisher Publisher
	repo      Repository
	cfg       DispatcherConfig
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.Collectors
	logger    Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher publishing through publisher and
// recording to repo.
func NewDispatcher(publisher Publisher, repo Repository, cfg DispatcherConfig, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = defaultBreakerOpen
	}

	d := &Dispatcher{
		publisher: publisher,
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "command-publish",
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return d
}

// SetMetrics sets the metrics collectors.
func (d *Dispatcher) SetMetrics(m *metrics.Collectors) { d.metrics = m }

// BreakerState reports the publish breaker state ("closed", "open" or
// "half-open").
func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}

// Encode serialises diff as the command payload.
func Encode(diff settings.Diff) ([]byte, error) {
	payload, err := json.Marshal(diff)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return payload, nil
}

// Dispatch publishes diff and records it.
//
// An empty diff is a no-op. A publish failure returns ErrPublishFailed and
// nothing is recorded. A recording failure after a successful publish
// returns ErrAuditFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, diff settings.Diff) error {
	if len(diff) == 0 {
		return nil
	}

	payload, err := Encode(diff)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publisher.Publish(d.cfg.Topic, payload, d.cfg.QoS, false)
	})
	d.metrics.CommandDispatched(err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			d.logger.Warn("command rejected by open circuit breaker", "topic", d.cfg.Topic)
		}
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	rec := &Record{Timestamp: d.now().UTC(), Topic: d.cfg.Topic, Payload: payload}
	if err := d.repo.Append(ctx, rec); err != nil {
		d.logger.Error("command published but not recorded", "topic", d.cfg.Topic, "payload", string(payload), "error", err)
		return fmt.Errorf("%w: %w", ErrAuditFailed, err)
	}

	d.logger.Info("command dispatched", "topic", d.cfg.Topic, "fields", diff.Fields(), "record_id", rec.ID)
	return nil
}

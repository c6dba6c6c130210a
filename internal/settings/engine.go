package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mussel-core/internal/infrastructure/metrics"
)

// Logger is the logging interface used by the engine.
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

// Dispatcher turns a settings diff into a device command.
type Dispatcher interface {
	Dispatch(ctx context.Context, diff Diff) error
}

// Result is the outcome of Apply.
type Result struct {
	Settings State `json:"settings"`
	Changed  Diff  `json:"changed"`
}

// Engine reconciles change requests against the settings log.
//
// It is the only writer of the settings log. Calls are not serialised: two
// concurrent requests may read the same prior state, and whichever commits
// last becomes authoritative.
//
// The log is ordered by timestamp, then id. A new row is never stamped
// earlier than the row it was merged over, so a wall clock that steps
// backwards can not hide the newest settings behind an older row.
type Engine struct {
	repo       Repository
	dispatcher Dispatcher
	metrics    *metrics.Collectors
	logger     Logger
	now        func() time.Time
}

// NewEngine creates an engine. dispatcher may be nil, in which case Apply
// only reconciles.
func NewEngine(repo Repository, dispatcher Dispatcher, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// SetMetrics sets the metrics collectors.
func (e *Engine) SetMetrics(m *metrics.Collectors) { e.metrics = m }

// Current returns the authoritative settings, or Defaults when none are
// stored.
func (e *Engine) Current(ctx context.Context) (State, error) {
	prior, err := e.load(ctx)
	if err != nil {
		return State{}, err
	}
	if prior == nil {
		return Defaults(), nil
	}
	return *prior, nil
}

// Reconcile merges p over the authoritative settings, persists the result
// and returns it along with the fields that changed. An empty diff is a
// valid outcome and still persists a record.
func (e *Engine) Reconcile(ctx context.Context, p Partial) (State, Diff, error) {
	prior, err := e.load(ctx)
	if err != nil {
		return State{}, nil, err
	}

	base := Defaults()
	if prior != nil {
		base = *prior
	}
	merged := Merge(base, p)
	diff := Compare(prior, p, merged)

	merged.Timestamp = e.stamp(prior)
	if err := e.repo.Append(ctx, &merged); err != nil {
		return State{}, nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	e.metrics.SettingsReconciled(len(diff))
	e.logger.Info("settings reconciled", "id", merged.ID, "changed", diff.Fields())
	return merged, diff, nil
}

// Apply reconciles p and dispatches the diff.
//
// If dispatch fails the persisted settings stay in place; the returned
// Result is still populated and the error wraps the dispatcher's.
func (e *Engine) Apply(ctx context.Context, p Partial) (Result, error) {
	merged, diff, err := e.Reconcile(ctx, p)
	if err != nil {
		return Result{}, err
	}

	result := Result{Settings: merged, Changed: diff}
	if e.dispatcher == nil {
		return result, nil
	}
	if err := e.dispatcher.Dispatch(ctx, diff); err != nil {
		e.logger.Error("settings dispatch failed", "id", merged.ID, "error", err)
		return result, fmt.Errorf("dispatching settings %d: %w", merged.ID, err)
	}
	return result, nil
}

// stamp returns the timestamp for a row merged over prior.
func (e *Engine) stamp(prior *State) time.Time {
	now := e.now().UTC()
	if prior != nil && now.Before(prior.Timestamp) {
		return prior.Timestamp.UTC()
	}
	return now
}

func (e *Engine) load(ctx context.Context) (*State, error) {
	prior, err := e.repo.Latest(ctx)
	if errors.Is(err, ErrNoSettings) {
		return nil, nil //nolint:nilnil // no prior record is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	return prior, nil
}

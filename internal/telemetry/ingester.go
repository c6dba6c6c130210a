package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mussel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/mussel-core/internal/infrastructure/mqtt"
)

const (
	// persistTimeout bounds one sample insert when the caller's context has
	// no deadline of its own.
	persistTimeout = 5 * time.Second

	// measurement is the time-series measurement written per sample.
	measurement = "telemetry"

	// ChannelSample is the live-feed channel carrying ingested samples.
	ChannelSample = "telemetry.sample"
)

// Logger is the logging interface used by the ingester.
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

// Subscriber is the part of the MQTT client the ingester needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// PointWriter mirrors samples into a time-series store.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time)
}

// Broadcaster pushes ingested samples to live-feed clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// IngesterConfig names the status topic to consume.
type IngesterConfig struct {
	Topic    string
	QoS      byte
	DeviceID string
}

// Ingester turns status messages into cache updates and log entries.
//
// The mirror, broadcaster and metrics are optional and must be set before
// Start.
type Ingester struct {
	cache *Cache
	repo  Repository
	cfg   IngesterConfig

	mirror      PointWriter
	broadcaster Broadcaster
	metrics     *metrics.Collectors
	logger      Logger

	now func() time.Time

	// mu serialises HandleStatus.
	mu sync.Mutex
}

// NewIngester creates an ingester writing to cache and repo.
func NewIngester(cache *Cache, repo Repository, cfg IngesterConfig, logger Logger) *Ingester {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Ingester{
		cache:  cache,
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetMirror sets the time-series mirror.
func (i *Ingester) SetMirror(w PointWriter) { i.mirror = w }

// SetBroadcaster sets the live-feed broadcaster.
func (i *Ingester) SetBroadcaster(b Broadcaster) { i.broadcaster = b }

// SetMetrics sets the metrics collectors.
func (i *Ingester) SetMetrics(m *metrics.Collectors) { i.metrics = m }

// Start subscribes to the status topic. The subscriber is expected to
// restore the subscription after reconnects.
func (i *Ingester) Start(sub Subscriber) error {
	if i.cfg.Topic == "" {
		return fmt.Errorf("status topic is required")
	}
	if err := sub.Subscribe(i.cfg.Topic, i.cfg.QoS, i.onMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", i.cfg.Topic, err)
	}
	i.logger.Info("telemetry ingestion started", "topic", i.cfg.Topic)
	return nil
}

// onMessage is the transport callback. Failures are logged and counted
// here, so the returned error only feeds the transport's own logging.
func (i *Ingester) onMessage(topic string, payload []byte) error {
	err := i.HandleStatus(context.Background(), payload)
	if err != nil {
		args := []any{"topic", topic, "error", err}
		var fe *FieldError
		if errors.As(err, &fe) {
			args = append(args, "field", fe.Field)
		}
		i.logger.Warn("status message dropped", args...)
	}
	return nil
}

// HandleStatus processes one status payload.
//
// On success the cache holds the decoded status before the sample is
// appended. A decode failure leaves both untouched and returns
// ErrDecodeFailed. A persistence failure returns ErrPersistFailed and the
// sample is dropped while the cache keeps the new snapshot.
func (i *Ingester) HandleStatus(ctx context.Context, payload []byte) error {
	status, err := DecodeStatus(payload)
	if err != nil {
		i.metrics.IngestFailed(metrics.ReasonDecode)
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	receivedAt := i.now().UTC()
	i.cache.Write(Snapshot{ReceivedAt: receivedAt, Status: status})

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, persistTimeout)
		defer cancel()
	}

	sample := &Sample{Timestamp: receivedAt, Status: status.Clone()}
	if err := i.repo.Append(ctx, sample); err != nil {
		i.metrics.IngestFailed(metrics.ReasonPersist)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	i.metrics.SampleIngested(receivedAt, status.Readings())

	if i.mirror != nil {
		i.mirror.WritePointWithTime(measurement, i.tags(), status.Fields(), receivedAt)
	}
	if i.broadcaster != nil {
		i.broadcaster.Broadcast(ChannelSample, sample)
	}

	i.logger.Debug("telemetry sample stored", "id", sample.ID)
	return nil
}

func (i *Ingester) tags() map[string]string {
	if i.cfg.DeviceID == "" {
		return nil
	}
	return map[string]string{"device_id": i.cfg.DeviceID}
}

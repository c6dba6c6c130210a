// Mussel Core - supervisory backend for the mussel growth device.
//
// The process subscribes to the device status topic, keeps the latest
// reading in memory and the full history in SQLite, serves the HTTP and
// WebSocket API, and publishes setting changes to the device command topic.
//
// Usage:
//
//	musselcore [--config path]
//
// The config path falls back to $MUSSEL_CONFIG, then configs/config.yaml.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/mussel-core/migrations"

	"github.com/nerrad567/mussel-core/internal/api"
	"github.com/nerrad567/mussel-core/internal/command"
	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
	"github.com/nerrad567/mussel-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/mussel-core/internal/infrastructure/logging"
	"github.com/nerrad567/mussel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/mussel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/mussel-core/internal/settings"
	"github.com/nerrad567/mussel-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "MUSSEL_CONFIG"
)

func main() {
	configPath, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags returns the config path from --config, $MUSSEL_CONFIG or the
// default, in that order.
func parseFlags(args []string) (string, error) {
	var configFlag string

	flagSet := pflag.NewFlagSet("musselcore", pflag.ContinueOnError)
	flagSet.StringVarP(&configFlag, "config", "c", "", "path to config.yaml (default $"+configEnv+" or "+defaultConfigPath+")")
	if err := flagSet.Parse(args); err != nil {
		return "", err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return "", fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return getConfigPath(configFlag), nil
}

func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// run wires every component and blocks until ctx is cancelled.
// Components are closed in reverse order of startup by the deferred calls.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Mussel Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	mqttClient, err := mqtt.Connect(cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"status_topic", mqttClient.Topics().DeviceStatus(),
		"command_topic", mqttClient.Topics().DeviceCommand(),
	)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	collectors := metrics.New()

	cache := telemetry.NewCache()
	telemetryRepo := telemetry.NewSQLiteRepository(db.DB)
	commandRepo := command.NewSQLiteRepository(db.DB)

	// #nosec G115 -- Validate guarantees breaker_failures >= 1
	dispatcher := command.NewDispatcher(mqttClient, commandRepo, command.DispatcherConfig{
		Topic:           mqttClient.Topics().DeviceCommand(),
		QoS:             mqttClient.QoS(),
		BreakerFailures: uint32(cfg.Dispatch.BreakerFailures),
		BreakerOpen:     time.Duration(cfg.Dispatch.BreakerOpenSeconds) * time.Second,
	}, log)
	dispatcher.SetMetrics(collectors)

	engine := settings.NewEngine(settings.NewSQLiteRepository(db.DB), dispatcher, log)
	engine.SetMetrics(collectors)

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Metrics:   cfg.Metrics,
		Logger:    log,
		DB:        db,
		MQTT:      mqttClient,
		Cache:     cache,
		Telemetry: telemetryRepo,
		Settings:  engine,
		Commands:  commandRepo,
		Collector: collectors,
		Breaker:   dispatcher,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	ingester := telemetry.NewIngester(cache, telemetryRepo, telemetry.IngesterConfig{
		Topic:    mqttClient.Topics().DeviceStatus(),
		QoS:      mqttClient.QoS(),
		DeviceID: cfg.Device.ID,
	}, log)
	if influxClient != nil {
		ingester.SetMirror(influxClient)
	}
	ingester.SetBroadcaster(server.Hub())
	ingester.SetMetrics(collectors)
	if startErr := ingester.Start(mqttClient); startErr != nil {
		return fmt.Errorf("starting telemetry ingestion: %w", startErr)
	}

	if keep := cfg.GetRetention(); keep > 0 {
		go telemetry.RunRetention(ctx, telemetryRepo, keep, telemetry.DefaultPruneInterval, log)
		log.Info("telemetry retention enabled", "days", cfg.Database.RetentionDays)
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("Mussel Core stopped")
	return nil
}

// healthCheck verifies the infrastructure connections. influxClient may be
// nil when the mirror is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/mussel-core/internal/command"
	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
	"github.com/nerrad567/mussel-core/internal/infrastructure/logging"
	"github.com/nerrad567/mussel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/mussel-core/internal/settings"
	"github.com/nerrad567/mussel-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BrokerStatus reports the MQTT connection.
type BrokerStatus interface {
	IsConnected() bool
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Metrics   config.MetricsConfig
	Logger    *logging.Logger
	DB        *database.DB
	MQTT      BrokerStatus // optional
	Cache     *telemetry.Cache
	Telemetry telemetry.Repository
	Settings  *settings.Engine
	Commands  command.Repository
	Collector *metrics.Collectors // optional
	Breaker   *command.Dispatcher // optional, reported by /system
	Hub       *Hub                // if set, used instead of creating one
	Version   string
}

// Server is the HTTP API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	metricsCfg config.MetricsConfig
	logger     *logging.Logger
	db         *database.DB
	mqtt       BrokerStatus
	cache      *telemetry.Cache
	telemetry  telemetry.Repository
	settings   *settings.Engine
	commands   command.Repository
	collector  *metrics.Collectors
	breaker    *command.Dispatcher
	version    string
	startTime  time.Time
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("telemetry cache is required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry repository is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings engine is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command repository is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		metricsCfg: deps.Metrics,
		logger:     deps.Logger,
		db:         deps.DB,
		mqtt:       deps.MQTT,
		cache:      deps.Cache,
		telemetry:  deps.Telemetry,
		settings:   deps.Settings,
		commands:   deps.Commands,
		collector:  deps.Collector,
		breaker:    deps.Breaker,
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        deps.Hub,
	}, nil
}

// Hub returns the WebSocket hub, creating it if needed. The hub must be run
// by the caller unless Start creates it.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.hub.SetMetrics(s.collector)
	}
	return s.hub
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.Hub().Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

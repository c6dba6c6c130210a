package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12

	clientIDPrefix = "mussel-core"
)

// buildClientOptions maps the mqtt config section onto paho options.
//
// Initial connection retries are driven by connectWithRetry, so paho's
// own ConnectRetry is off; AutoReconnect handles drops after that.
func buildClientOptions(cfg config.MQTTConfig, id string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(id)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// clientID returns the configured ID, or a unique one when none is set.
func clientID(configured string) string {
	if configured != "" {
		return configured
	}
	return clientIDPrefix + "-" + uuid.NewString()[:8]
}

// configureLWT makes the broker publish a retained offline status on
// <prefix>/core/status if the session dies without a clean Close.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, id string) {
	opts.SetWill(topics.CoreStatus(), presencePayload("offline", id, "unexpected_disconnect"), 1, true)
}

func buildOnlinePayload(id string) string {
	return presencePayload("online", id, "")
}

func buildOfflinePayload(id string) string {
	return presencePayload("offline", id, "graceful_shutdown")
}

type presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func presencePayload(status, id, reason string) string {
	b, _ := json.Marshal(presence{ //nolint:errcheck // plain string fields cannot fail
		Status:    status,
		ClientID:  id,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(b)
}

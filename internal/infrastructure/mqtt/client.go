package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
)

// Client is the broker session shared by telemetry ingestion (subscribe)
// and command dispatch (publish).
//
// Subscriptions are remembered and re-issued after every reconnect; one
// that fails to restore is retried with backoff while the session lasts, so
// a broker restart never silently stops ingestion. All methods are safe for
// concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	id     string

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	// endSession cancels the context bounding restore retries; it runs on
	// disconnect, on the next connect and on Close.
	endSession    context.CancelFunc
	closed        bool
	sessionMu     sync.Mutex
	restores      sync.WaitGroup
	restorePolicy func() backoff.BackOff
}

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives the topic and raw payload of one message.
//
// Handlers run on paho's delivery goroutine and should return promptly.
// A returned error is logged; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Connect opens a session to the configured broker.
//
// The first connection is retried with exponential backoff between
// mqtt.reconnect.initial_delay and max_delay, at most max_attempts times
// (0 means keep trying until max_delay has elapsed in total). After that,
// paho's auto-reconnect takes over. logger may be nil.
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := newClient(cfg, nil)
	c.logger = logger

	opts := buildClientOptions(cfg, c.id)
	configureLWT(opts, c.topics, c.id)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if l := c.getLogger(); l != nil {
			l.Info("mqtt reconnecting", "broker", brokerURL(cfg))
		}
	})
	c.client = pahomqtt.NewClient(opts)

	if err := c.connectWithRetry(); err != nil {
		return nil, err
	}

	// The OnConnect handler runs asynchronously; mark the session live now
	// so IsConnected is accurate as soon as Connect returns.
	c.setConnected(true)
	return c, nil
}

// newClient builds an unconnected Client around an existing paho client.
// An empty client_id is resolved here, once, so the session, its LWT and
// its presence messages all carry the same ID.
func newClient(cfg config.MQTTConfig, pc pahomqtt.Client) *Client {
	return &Client{
		client:        pc,
		cfg:           cfg,
		topics:        NewTopics(cfg.Topics),
		id:            clientID(cfg.Broker.ClientID),
		subscriptions: make(map[string]subscription),
		restorePolicy: func() backoff.BackOff { return restoreBackOff(cfg.Reconnect) },
	}
}

func (c *Client) connectWithRetry() error {
	policy := connectBackOff(c.cfg.Reconnect)

	attempt := func() error {
		token := c.client.Connect()
		if !token.WaitTimeout(defaultConnectTimeout) {
			return fmt.Errorf("%w: timeout after %v", ErrTimeout, defaultConnectTimeout)
		}
		return token.Error()
	}

	notify := func(err error, wait time.Duration) {
		if l := c.getLogger(); l != nil {
			l.Warn("mqtt connect failed, retrying",
				"broker", brokerURL(c.cfg),
				"error", err,
				"retry_in", wait,
			)
		}
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// connectBackOff turns the reconnect section into a retry policy.
func connectBackOff(rc config.MQTTReconnectConfig) backoff.BackOff {
	initial := time.Duration(rc.InitialDelay) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := time.Duration(rc.MaxDelay) * time.Second
	if maxDelay < initial {
		maxDelay = initial
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxDelay),
	)
	if rc.MaxAttempts > 0 {
		b.MaxElapsedTime = 0
		return backoff.WithMaxRetries(b, uint64(rc.MaxAttempts-1))
	}
	b.MaxElapsedTime = maxDelay
	return b
}

// restoreBackOff is the retry policy for a subscription that failed to
// restore. It never gives up on its own; the session ending stops it.
func restoreBackOff(rc config.MQTTReconnectConfig) backoff.BackOff {
	initial := time.Duration(rc.InitialDelay) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := time.Duration(rc.MaxDelay) * time.Second
	if maxDelay < initial {
		maxDelay = initial
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMaxElapsedTime(0),
	)
}

func (c *Client) handleConnect() {
	session, ok := c.startSession()
	if !ok {
		return
	}
	c.setConnected(true)
	c.restoreSubscriptions(session)
	c.publishPresence(buildOnlinePayload(c.id))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.endCurrentSession()
	c.setConnected(false)

	if l := c.getLogger(); l != nil {
		l.Warn("mqtt connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// startSession begins a new connection session, ending any previous one.
// It reports false once the client is closed.
func (c *Client) startSession() (context.Context, bool) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.closed {
		return nil, false
	}
	if c.endSession != nil {
		c.endSession()
	}
	session, cancel := context.WithCancel(context.Background())
	c.endSession = cancel
	return session, true
}

func (c *Client) endCurrentSession() {
	c.sessionMu.Lock()
	if c.endSession != nil {
		c.endSession()
	}
	c.sessionMu.Unlock()
}

// restoreSubscriptions re-issues every tracked subscription. A topic that
// fails is retried in the background until it succeeds, it is unsubscribed,
// or the session ends.
func (c *Client) restoreSubscriptions(session context.Context) {
	c.subMu.RLock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	c.subMu.RUnlock()

	for _, topic := range topics {
		err := c.resubscribe(topic)
		if err == nil {
			continue
		}
		if l := c.getLogger(); l != nil {
			l.Error("mqtt resubscribe failed, retrying", "topic", topic, "error", err)
		}
		if !c.trackRestore() {
			return
		}
		go c.retryRestore(session, topic)
	}
}

// trackRestore registers a background restore unless Close has begun.
func (c *Client) trackRestore() bool {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.closed {
		return false
	}
	c.restores.Add(1)
	return true
}

func (c *Client) retryRestore(session context.Context, topic string) {
	defer c.restores.Done()

	attempt := func() error {
		if !c.IsConnected() {
			return backoff.Permanent(ErrNotConnected)
		}
		return c.resubscribe(topic)
	}
	notify := func(err error, wait time.Duration) {
		if l := c.getLogger(); l != nil {
			l.Warn("mqtt resubscribe failed, retrying", "topic", topic, "error", err, "retry_in", wait)
		}
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(c.restorePolicy(), session), notify)
	l := c.getLogger()
	switch {
	case l == nil:
	case err == nil:
		l.Info("mqtt subscription restored", "topic", topic)
	case session.Err() == nil:
		l.Warn("mqtt subscription restore abandoned", "topic", topic, "error", err)
	}
}

// resubscribe re-issues the tracked subscription for topic. A topic that is
// no longer tracked counts as done.
func (c *Client) resubscribe(topic string) error {
	c.subMu.RLock()
	s, ok := c.subscriptions[topic]
	c.subMu.RUnlock()
	if !ok {
		return nil
	}

	token := c.client.Subscribe(s.topic, s.qos, c.wrapHandler(s.handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) publishPresence(payload string) {
	token := c.client.Publish(c.topics.CoreStatus(), byte(c.cfg.QoS), true, payload)
	token.WaitTimeout(defaultPublishTimeout)
}

// Close stops pending subscription restores, publishes a graceful offline
// status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.sessionMu.Lock()
	c.closed = true
	if c.endSession != nil {
		c.endSession()
	}
	c.sessionMu.Unlock()
	c.restores.Wait()

	if c.IsConnected() {
		c.publishPresence(buildOfflinePayload(c.id))
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// Topics returns the topic names this client was configured with.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// SetOnConnect registers a callback for the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback for connection loss.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger replaces the logger used for handler errors and reconnects.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, recovering panics so a bad
// message can never take the process down.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.getLogger(); l != nil {
					l.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if l := c.getLogger(); l != nil {
				l.Warn("mqtt handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

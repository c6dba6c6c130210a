// Package mqtt provides the broker session used to talk to the device.
//
// The device publishes telemetry on the status topic and listens for
// setting changes on the command topic. Mussel Core subscribes to the
// first and publishes to the second:
//
//	Device ── mussel/data ──► Broker ──► Mussel Core
//	Device ◄─ mussel/command ─ Broker ◄── Mussel Core
//
// The client:
//   - retries the first connection with exponential backoff, then relies on
//     paho auto-reconnect
//   - re-issues every tracked subscription after a reconnect, retrying any
//     that fails until it sticks or the connection drops again
//   - publishes a retained online/offline presence on <prefix>/core/status,
//     with a Last Will for crashes
//   - recovers panics raised by message handlers
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().DeviceStatus(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        return ingester.HandleStatus(ctx, payload)
//	    })
//
// Nothing connects on import; the caller owns the lifecycle.
package mqtt

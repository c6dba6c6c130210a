// Package telemetry ingests device status messages.
//
// Each message on the status topic is decoded into a Status, written to the
// latest-state Cache and appended to the telemetry log as a Sample. The
// cache holds exactly the most recently received message: a message that
// omits a reading replaces the cached value with "absent" rather than
// keeping the previous one.
//
// Usage:
//
//	cache := telemetry.NewCache()
//	repo := telemetry.NewSQLiteRepository(db.DB)
//	ingester := telemetry.NewIngester(cache, repo, telemetry.IngesterConfig{
//	    Topic:    client.Topics().DeviceStatus(),
//	    QoS:      client.QoS(),
//	    DeviceID: cfg.Device.ID,
//	}, log)
//	if err := ingester.Start(client); err != nil {
//	    return err
//	}
//
// Thread Safety: Cache is safe for concurrent use. Ingester serialises
// HandleStatus so that receipt order, cache order and log order agree.
package telemetry

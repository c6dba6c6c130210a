// Package influxdb mirrors telemetry samples into InfluxDB v2.
//
// The mirror is optional (influxdb.enabled). Each ingested sample becomes
// one point in the "telemetry" measurement, tagged with device_id, with one
// field per reading present in the message.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { logger.Warn("influx write", "error", err) })
//
// Writes are batched according to batch_size and flush_interval.
package influxdb

// Package influxdb mirrors device telemetry into a local InfluxDB bucket.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The mirror
// is optional: the device stays fully functional when it is disabled or the
// server goes away.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("hp-01", fields, time.Now())
//
// # Error Handling
//
// Write errors are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb

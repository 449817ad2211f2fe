// Package telemetry turns device snapshots into broker messages.
//
// A Publisher builds one JSON message per call and hands it to the session.
// Saved setpoints are included only when set; a mode that was never set is
// omitted rather than reported with a default. Successfully published
// snapshots can be mirrored into InfluxDB.
package telemetry

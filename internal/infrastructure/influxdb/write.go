package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementDeviceState holds one point per published telemetry message.
const measurementDeviceState = "device_state"

// WriteDeviceState records the state of one device at ts. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceState("hp-01", map[string]any{
//	    "mode":               "heat",
//	    "target_temperature": 22.5,
//	}, time.Now())
func (c *Client) WriteDeviceState(deviceID string, fields map[string]any, ts time.Time) {
	c.WritePoint(measurementDeviceState, map[string]string{"device_id": deviceID}, fields, ts)
}

// WritePoint writes a point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

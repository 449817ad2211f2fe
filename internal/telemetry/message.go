package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-cloudlink/internal/heatpump"
	"github.com/nerrad567/gray-logic-cloudlink/internal/setpoint"
)

// Payload is the JSON body of a telemetry message.
type Payload struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	Settings heatpump.Settings `json:"settings"`
	Status   heatpump.Status   `json:"status"`

	// Setpoints holds only modes that have been saved.
	Setpoints map[string]float32 `json:"setpoints,omitempty"`

	Link Link `json:"link"`
}

// Link describes the broker connection the message was sent over.
type Link struct {
	Host       string `json:"host"`
	UptimeSecs int64  `json:"uptime_secs"`
}

// encode builds the payload bytes for one snapshot.
func encode(deviceID string, snap heatpump.Snapshot, records []setpoint.Record, link Link, now time.Time) ([]byte, error) {
	p := Payload{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Timestamp: now.UTC(),
		Settings:  snap.Settings,
		Status:    snap.Status,
		Link:      link,
	}
	for _, r := range records {
		if !r.Set {
			continue
		}
		if p.Setpoints == nil {
			p.Setpoints = make(map[string]float32, len(records))
		}
		p.Setpoints[r.Mode.String()] = r.Value
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding telemetry: %w", err)
	}
	return data, nil
}

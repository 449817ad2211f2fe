package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/heatpump"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
	"github.com/nerrad567/gray-logic-cloudlink/internal/setpoint"
)

// Sink accepts outbound messages. *session.Session satisfies it.
type Sink interface {
	Publish(ctx context.Context, msg session.Message) error
	ConnectedSince() time.Time
}

// SetpointSource reports the saved setpoints. *setpoint.Store satisfies it.
type SetpointSource interface {
	Snapshot() []setpoint.Record
}

// Mirror records published snapshots locally.
type Mirror interface {
	WriteDeviceState(deviceID string, fields map[string]any, ts time.Time)
}

// Logger defines the logging interface for the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Publisher builds telemetry messages and hands them to a Sink.
type Publisher struct {
	deviceID   string
	brokerHost string
	topic      string
	sink       Sink
	setpoints  SetpointSource
	mirror     Mirror
	logger     Logger
}

// NewPublisher creates a publisher for deviceID sending to the device's
// events topic.
func NewPublisher(deviceID, brokerHost string, sink Sink, setpoints SetpointSource) *Publisher {
	return &Publisher{
		deviceID:   deviceID,
		brokerHost: brokerHost,
		topic:      mqtt.Topics{DeviceID: deviceID}.Events(),
		sink:       sink,
		setpoints:  setpoints,
		logger:     noopLogger{},
	}
}

// SetMirror enables mirroring of published snapshots. Nil disables it.
func (p *Publisher) SetMirror(m Mirror) {
	p.mirror = m
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Topic returns the telemetry topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Build creates the message for snap without sending it.
func (p *Publisher) Build(snap heatpump.Snapshot, now time.Time) (session.Message, error) {
	var records []setpoint.Record
	if p.setpoints != nil {
		records = p.setpoints.Snapshot()
	}

	link := Link{Host: p.brokerHost}
	if since := p.sink.ConnectedSince(); !since.IsZero() && now.After(since) {
		link.UptimeSecs = int64(now.Sub(since) / time.Second)
	}

	payload, err := encode(p.deviceID, snap, records, link, now)
	if err != nil {
		return session.Message{}, err
	}
	return session.Message{
		Topic:     p.topic,
		Payload:   payload,
		Timestamp: now,
	}, nil
}

// PublishSnapshot builds and sends one message for snap. The snapshot is
// mirrored only after the sink accepted it.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap heatpump.Snapshot, now time.Time) error {
	msg, err := p.Build(snap, now)
	if err != nil {
		return err
	}
	if err := p.sink.Publish(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug("telemetry sent",
		"topic", msg.Topic,
		"mode", snap.Settings.Mode,
		"target_temperature", snap.Settings.TargetTemperature,
	)
	if p.mirror != nil {
		p.mirror.WriteDeviceState(p.deviceID, fields(snap), now)
	}
	return nil
}

// fields flattens a snapshot for the mirror.
func fields(snap heatpump.Snapshot) map[string]any {
	f := map[string]any{
		"mode":                 string(snap.Settings.Mode),
		"target_temperature":   snap.Settings.TargetTemperature,
		"room_temperature":     snap.Status.RoomTemperature,
		"operating":            snap.Status.Operating,
		"compressor_frequency": snap.Status.CompressorFrequency,
	}
	if snap.Settings.Fan != "" {
		f["fan"] = snap.Settings.Fan
	}
	if snap.Settings.Vane != "" {
		f["vane"] = snap.Settings.Vane
	}
	return f
}

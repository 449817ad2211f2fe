package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/mqtt"
)

// BrokerDialer opens MQTT transports to the device broker and subscribes to
// the device's command and config topics.
type BrokerDialer struct {
	cfg    config.MQTTConfig
	topics mqtt.Topics
	logger mqtt.Logger
}

// NewBrokerDialer creates a dialer for deviceID.
func NewBrokerDialer(cfg config.MQTTConfig, deviceID string) *BrokerDialer {
	return &BrokerDialer{
		cfg:    cfg,
		topics: mqtt.Topics{DeviceID: deviceID},
	}
}

// SetLogger sets the logger handed to each MQTT client.
func (d *BrokerDialer) SetLogger(logger mqtt.Logger) {
	d.logger = logger
}

// Dial connects, wires the callbacks and subscribes to the control topics.
func (d *BrokerDialer) Dial(ctx context.Context, req DialRequest) (Transport, error) {
	client, err := mqtt.Connect(ctx, d.cfg, mqtt.Auth{
		ClientID: req.ClientID,
		Password: req.Token.Signature,
		RootCAs:  req.RootCAs,
	})
	if err != nil {
		return nil, classify(err)
	}
	if d.logger != nil {
		client.SetLogger(d.logger)
	}
	if req.OnConnectionLost != nil {
		client.SetOnDisconnect(req.OnConnectionLost)
	}

	handler := d.controlHandler(req.OnMessage)
	for _, topic := range []string{d.topics.Config(), d.topics.Commands()} {
		if err := client.Subscribe(ctx, topic, client.DefaultQoS(), handler); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: subscribe %s: %w", ErrHandshakeFailed, topic, err)
		}
	}
	return &brokerTransport{client: client}, nil
}

// controlHandler forwards messages on the device's command and config
// topics. Anything else is refused with ErrProtocol, which the MQTT client
// logs.
func (d *BrokerDialer) controlHandler(onMessage func(topic string, payload []byte)) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		if !d.topics.IsControl(topic) {
			return fmt.Errorf("%w: message on non-control topic %s", ErrProtocol, topic)
		}
		if onMessage != nil {
			onMessage(topic, payload)
		}
		return nil
	}
}

type brokerTransport struct {
	client *mqtt.Client
}

func (t *brokerTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return classify(t.client.Publish(ctx, topic, payload, t.client.DefaultQoS()))
}

func (t *brokerTransport) Close() error {
	return t.client.Close()
}

// classify maps MQTT errors onto session errors, keeping the original in
// the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mqtt.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, mqtt.ErrNotConnected):
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	case errors.Is(err, mqtt.ErrConnectionFailed):
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	default:
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
}

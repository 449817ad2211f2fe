package mqtt

import (
	"context"
	"fmt"
)

// maxPayloadSize is the broker's limit for telemetry payloads (256KB).
const maxPayloadSize = 256 << 10

// Publish sends payload to topic and waits for the broker acknowledgement
// (QoS 1) or the write (QoS 0), bounded by the configured timeout.
//
// A timeout wraps both ErrPublishFailed and ErrTimeout.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// The broker rejects retained messages.
	token := c.client.Publish(topic, qos, false, payload)
	if err := wait(ctx, token, publishTimeout(c.cfg)); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// DefaultQoS returns the configured QoS level.
func (c *Client) DefaultQoS() byte {
	return byte(c.cfg.QoS)
}

// Package mqtt connects the device to the cloud broker over TLS.
//
// Each Client is a single authenticated connection:
//   - client id is the full device path (projects/.../devices/{id})
//   - username is "unused" and the password is the device bearer token
//   - the broker certificate is checked against the configured trust anchors
//   - automatic reconnection is disabled; a dropped client is replaced
//
// Topic names follow the broker's device convention and are built by Topics:
//
//	/devices/{id}/events        telemetry
//	/devices/{id}/state         device state
//	/devices/{id}/commands/#    inbound commands
//	/devices/{id}/config        inbound configuration
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.Auth{
//	    ClientID: identity.ClientID(),
//	    Password: token.Signature,
//	    RootCAs:  anchors.CertPool(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{DeviceID: identity.DeviceID()}
//	err = client.Publish(ctx, topics.Events(), payload, client.DefaultQoS())
package mqtt

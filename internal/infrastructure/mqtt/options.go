package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
)

const (
	// DefaultHost is the regular device broker.
	DefaultHost = "mqtt.googleapis.com"

	// LTSHost is the long-term-support broker domain. It is used instead of
	// DefaultHost when use_lts is set.
	LTSHost = "mqtt.2030.ltsapis.goog"

	// Username is sent with every connection; the broker authenticates the
	// device by the bearer token in the password field only.
	Username = "unused"

	// protocolVersion selects MQTT 3.1.1.
	protocolVersion = 4

	// maxQoS is the highest QoS the broker accepts.
	maxQoS = 1

	// disconnectQuiesce is how long Close waits for in-flight work (ms).
	disconnectQuiesce = 250

	tlsMinVersion = tls.VersionTLS12
)

// Auth carries the per-connection identity and credentials.
type Auth struct {
	// ClientID is the full device path:
	// projects/{p}/locations/{l}/registries/{r}/devices/{d}
	ClientID string

	// Password is the bearer token.
	Password string

	// RootCAs validates the broker certificate chain.
	RootCAs *x509.CertPool
}

// BrokerHost returns the host to dial for cfg.
func BrokerHost(cfg config.MQTTConfig) string {
	if cfg.UseLTS && cfg.Broker.Host == DefaultHost {
		return LTSHost
	}
	return cfg.Broker.Host
}

// BrokerURL returns the ssl:// URL to dial for cfg.
func BrokerURL(cfg config.MQTTConfig) string {
	return fmt.Sprintf("ssl://%s:%d", BrokerHost(cfg), cfg.Broker.Port)
}

// buildClientOptions creates paho options for one device connection.
//
// Automatic reconnection is off: a lost connection is reported through the
// connection-lost handler and the owner decides when to dial again, with a
// fresh token.
func buildClientOptions(cfg config.MQTTConfig, auth Auth) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(BrokerURL(cfg))
	opts.SetClientID(auth.ClientID)
	opts.SetUsername(Username)
	opts.SetPassword(auth.Password)
	opts.SetProtocolVersion(protocolVersion)

	opts.SetCleanSession(cfg.CleanSession)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeoutSecs) * time.Second)
	opts.SetKeepAlive(time.Duration(cfg.KeepAliveSecs) * time.Second)
	opts.SetPingTimeout(publishTimeout(cfg))
	opts.SetWriteTimeout(publishTimeout(cfg))

	opts.SetTLSConfig(&tls.Config{
		MinVersion: tlsMinVersion,
		RootCAs:    auth.RootCAs,
		ServerName: BrokerHost(cfg),
	})

	return opts
}

func publishTimeout(cfg config.MQTTConfig) time.Duration {
	return time.Duration(cfg.TimeoutMS) * time.Millisecond
}

func connectTimeout(cfg config.MQTTConfig) time.Duration {
	return time.Duration(cfg.ConnectTimeoutSecs) * time.Second
}

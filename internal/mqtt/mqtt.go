// Package mqtt forwards record events to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/logger"
)

const component = "mqtt"

// Client defines the MQTT operations the publisher needs.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // base topic, events go to <Topic>/records
	Retain            bool
	ReconnectCooldown time.Duration
	MaxReconnectDelay time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Broker:            conf.DefaultMQTTBroker,
		ClientID:          "linewalk",
		Topic:             conf.DefaultMQTTTopic,
		ReconnectCooldown: 5 * time.Second,
		MaxReconnectDelay: 5 * time.Minute,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings overlays the user settings on DefaultConfig. The
// instance name is used as client id when none is configured.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	m := settings.MQTT
	if m.Broker != "" {
		cfg.Broker = m.Broker
	}
	if m.Topic != "" {
		cfg.Topic = m.Topic
	}
	switch {
	case m.ClientID != "":
		cfg.ClientID = m.ClientID
	case settings.Main.Name != "":
		cfg.ClientID = settings.Main.Name
	}
	cfg.Username = m.Username
	cfg.Password = m.Password
	return cfg
}

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module(component)
}

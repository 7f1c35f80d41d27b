package connection

import "time"

// DefaultRelayURL is the public relay endpoint
const DefaultRelayURL = "wss://socket.tarkov.dev"

// Config holds timing and transport settings for the relay connection
type Config struct {
	RelayURL string

	// PingInterval is how often the relay is expected to ping. The connection is
	// declared dead when no ping arrives within PingInterval + HeartbeatMargin.
	PingInterval    time.Duration
	HeartbeatMargin time.Duration

	// ReconnectInterval is the period of the supervisor that retries dropped connections
	ReconnectInterval time.Duration

	// SendRetryDelay is how long a send waits for the transport to open before its single retry
	SendRetryDelay time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
}

// DefaultConfig returns the settings matching the public relay
func DefaultConfig() Config {
	return Config{
		RelayURL:          DefaultRelayURL,
		PingInterval:      40 * time.Second,
		HeartbeatMargin:   1 * time.Second,
		ReconnectInterval: 5 * time.Second,
		SendRetryDelay:    500 * time.Millisecond,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageSize:    64 * 1024,
	}
}

// HeartbeatTimeout is the longest the connection may stay silent before it is terminated
func (c Config) HeartbeatTimeout() time.Duration {
	return c.PingInterval + c.HeartbeatMargin
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RelayURL == "" {
		c.RelayURL = d.RelayURL
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.HeartbeatMargin < 0 {
		c.HeartbeatMargin = d.HeartbeatMargin
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = d.ReconnectInterval
	}
	if c.SendRetryDelay <= 0 {
		c.SendRetryDelay = d.SendRetryDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

package proxy

import (
	"time"

	"github.com/sessamekesh/chessnet/pkg/wire"
	"go.uber.org/zap"
)

const DefaultAddress = "127.0.0.1:19864"

type StatsConfig struct {
	BytesEnabled bool
	RttEnabled   bool
	PingInterval time.Duration
}

type ProxyConfig struct {
	Address string
	// Polls per second
	TickRate float64

	Stats StatsConfig

	// Keep owner messages queued while the connection is down and send them
	// once it is back, instead of dropping them.
	KeepMessagesOnDisconnect bool
	// Client-side only. Server-side proxies have no dial function and never reconnect.
	AutoReconnect     bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	DialTimeout       time.Duration

	ReadPollTimeout    time.Duration
	WriteTimeout       time.Duration
	MaxMessageSize     int
	MaxReceivesPerTick int

	ChannelBufferLength int

	Logger *zap.Logger
}

func DefaultClientConfig() ProxyConfig {
	return ProxyConfig{
		Address:  DefaultAddress,
		TickRate: 1000,
		Stats: StatsConfig{
			BytesEnabled: true,
			RttEnabled:   true,
			PingInterval: time.Second,
		},
		KeepMessagesOnDisconnect: false,
		AutoReconnect:            true,
	}
}

func DefaultServerConfig() ProxyConfig {
	return ProxyConfig{
		TickRate: 1000,
		Stats: StatsConfig{
			BytesEnabled: true,
		},
	}
}

func (c ProxyConfig) withDefaults() ProxyConfig {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.TickRate <= 0 {
		c.TickRate = 1000
	}
	if c.Stats.PingInterval <= 0 {
		c.Stats.PingInterval = time.Second
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 5
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.ReadPollTimeout <= 0 {
		c.ReadPollTimeout = wire.DefaultReadPollTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wire.DefaultWriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = wire.DefaultMaxMessageSize
	}
	if c.MaxReceivesPerTick <= 0 {
		c.MaxReceivesPerTick = 64
	}
	if c.ChannelBufferLength <= 0 {
		c.ChannelBufferLength = 1024
	}
	if c.Logger == nil {
		c.Logger = zap.Must(zap.NewDevelopment())
	}
	return c
}

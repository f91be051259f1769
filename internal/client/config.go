package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ackwire/internal/protocol/frame"
	"github.com/danmuck/ackwire/internal/transport"
)

var ErrInvalidConfig = errors.New("client: invalid config")

type Config struct {
	Addr            string
	DialTimeout     time.Duration
	RequestTimeout  time.Duration
	ConnectAttempts int
	Backoff         BackoffConfig
	Frame           frame.Config
	Security        transport.Security
}

func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:7878",
		DialTimeout:     5 * time.Second,
		RequestTimeout:  15 * time.Second,
		ConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Frame:    frame.DefaultConfig(),
		Security: transport.Security{Mode: transport.SecurityModeDevelopment},
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = d.Addr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = d.ConnectAttempts
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = d.Backoff
	}
	c.Frame = c.Frame.WithDefaults()
	c.Security.Mode = transport.NormalizeSecurityMode(c.Security.Mode)
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("%w: connect_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 {
		return fmt.Errorf("%w: backoff delays must not be negative", ErrInvalidConfig)
	}
	return c.Security.ValidateClient()
}

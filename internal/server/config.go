package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ackwire/internal/protocol/frame"
	"github.com/danmuck/ackwire/internal/transport"
)

var (
	ErrInvalidMode   = errors.New("server: invalid adapter mode")
	ErrInvalidConfig = errors.New("server: invalid config")
)

// Mode selects the adapter that drives each connection.
type Mode string

const (
	ModeBlocking Mode = "blocking"
	ModeAsync    Mode = "async"
)

// UserSeed is an account registered when the service starts.
type UserSeed struct {
	Username  string `toml:"username"`
	FirstName string `toml:"first_name"`
	LastName  string `toml:"last_name"`
	Password  string `toml:"password"`
}

type Config struct {
	Name             string
	ListenAddr       string
	AdminAddr        string
	AdminToken       string
	Mode             Mode
	Frame            frame.Config
	IdleTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	CorsOrigins      []string
	BcryptCost       int
	Users            []UserSeed
	Security         transport.Security
}

func DefaultConfig() Config {
	return Config{
		Name:             "ackd",
		ListenAddr:       ":7878",
		AdminAddr:        "",
		Mode:             ModeBlocking,
		Frame:            frame.DefaultConfig(),
		IdleTimeout:      5 * time.Minute,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		CorsOrigins:      []string{"http://localhost:3000"},
		BcryptCost:       10,
		Security:         transport.Security{Mode: transport.SecurityModeDevelopment},
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = d.Name
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.Frame = c.Frame.WithDefaults()
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = d.BcryptCost
	}
	c.Security.Mode = transport.NormalizeSecurityMode(c.Security.Mode)
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModeBlocking, ModeAsync:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Frame.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	if c.IdleTimeout < 0 || c.WriteTimeout < 0 || c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Users))
	for i, u := range c.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" || u.Password == "" {
			return fmt.Errorf("%w: users[%d] needs username and password", ErrInvalidConfig, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: users[%d] duplicates %q", ErrInvalidConfig, i, name)
		}
		seen[name] = struct{}{}
	}
	return c.Security.ValidateServer()
}

package config

import (
	"github.com/danmuck/ackwire/internal/server"
	"github.com/danmuck/ackwire/internal/transport"
)

// serverFile is the on-disk shape of ackd.toml. Durations are Go duration
// strings.
type serverFile struct {
	Name             string             `toml:"name"`
	ListenAddr       string             `toml:"listen_addr"`
	AdminAddr        string             `toml:"admin_addr"`
	AdminToken       string             `toml:"admin_token"`
	Mode             string             `toml:"mode"`
	IdleTimeout      string             `toml:"idle_timeout"`
	WriteTimeout     string             `toml:"write_timeout"`
	HandshakeTimeout string             `toml:"handshake_timeout"`
	CorsOrigins      []string           `toml:"cors_origins"`
	BcryptCost       int                `toml:"bcrypt_cost"`
	Frame            frameFile          `toml:"frame"`
	Security         transport.Security `toml:"security"`
	Users            []server.UserSeed  `toml:"users,omitempty"`
}

// clientFile is the on-disk shape of ackctl.toml.
type clientFile struct {
	Addr            string             `toml:"addr"`
	DialTimeout     string             `toml:"dial_timeout"`
	RequestTimeout  string             `toml:"request_timeout"`
	ConnectAttempts int                `toml:"connect_attempts"`
	Backoff         backoffFile        `toml:"backoff"`
	Frame           frameFile          `toml:"frame"`
	Security        transport.Security `toml:"security"`
}

type frameFile struct {
	MaxPayloadBytes uint32 `toml:"max_payload_bytes"`
	ChunkSize       int    `toml:"chunk_size"`
}

type backoffFile struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

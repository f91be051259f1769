package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ackwire/internal/client"
	"github.com/danmuck/ackwire/internal/server"
	"github.com/danmuck/ackwire/internal/transport"
)

var ErrUnknownKeys = errors.New("config: unknown keys")

// LoadServerConfig overlays the keys present in path onto
// server.DefaultConfig and validates the result.
func LoadServerConfig(path string) (server.Config, error) {
	cfg := server.DefaultConfig()

	var raw serverFile
	meta, err := decodeFile(path, &raw)
	if err != nil {
		return server.Config{}, fmt.Errorf("load server config: %w", err)
	}

	setString(meta, &cfg.Name, raw.Name, "name")
	setString(meta, &cfg.ListenAddr, raw.ListenAddr, "listen_addr")
	setString(meta, &cfg.AdminAddr, raw.AdminAddr, "admin_addr")
	setString(meta, &cfg.AdminToken, raw.AdminToken, "admin_token")
	if meta.IsDefined("mode") {
		cfg.Mode = server.Mode(strings.TrimSpace(raw.Mode))
	}
	set(meta, &cfg.CorsOrigins, raw.CorsOrigins, "cors_origins")
	set(meta, &cfg.BcryptCost, raw.BcryptCost, "bcrypt_cost")
	set(meta, &cfg.Frame.MaxPayloadBytes, raw.Frame.MaxPayloadBytes, "frame", "max_payload_bytes")
	set(meta, &cfg.Frame.ChunkSize, raw.Frame.ChunkSize, "frame", "chunk_size")
	overlaySecurity(meta, &cfg.Security, raw.Security)
	if meta.IsDefined("users") {
		cfg.Users = raw.Users
	}

	durations := []struct {
		dst *time.Duration
		src string
		key []string
	}{
		{&cfg.IdleTimeout, raw.IdleTimeout, []string{"idle_timeout"}},
		{&cfg.WriteTimeout, raw.WriteTimeout, []string{"write_timeout"}},
		{&cfg.HandshakeTimeout, raw.HandshakeTimeout, []string{"handshake_timeout"}},
	}
	for _, d := range durations {
		if err := setDuration(meta, d.dst, d.src, d.key...); err != nil {
			return server.Config{}, fmt.Errorf("load server config: %w", err)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return server.Config{}, fmt.Errorf("load server config: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig overlays the keys present in path onto
// client.DefaultConfig and validates the result.
func LoadClientConfig(path string) (client.Config, error) {
	cfg := client.DefaultConfig()

	var raw clientFile
	meta, err := decodeFile(path, &raw)
	if err != nil {
		return client.Config{}, fmt.Errorf("load client config: %w", err)
	}

	setString(meta, &cfg.Addr, raw.Addr, "addr")
	set(meta, &cfg.ConnectAttempts, raw.ConnectAttempts, "connect_attempts")
	set(meta, &cfg.Backoff.Multiplier, raw.Backoff.Multiplier, "backoff", "multiplier")
	set(meta, &cfg.Backoff.Jitter, raw.Backoff.Jitter, "backoff", "jitter")
	set(meta, &cfg.Frame.MaxPayloadBytes, raw.Frame.MaxPayloadBytes, "frame", "max_payload_bytes")
	set(meta, &cfg.Frame.ChunkSize, raw.Frame.ChunkSize, "frame", "chunk_size")
	overlaySecurity(meta, &cfg.Security, raw.Security)

	durations := []struct {
		dst *time.Duration
		src string
		key []string
	}{
		{&cfg.DialTimeout, raw.DialTimeout, []string{"dial_timeout"}},
		{&cfg.RequestTimeout, raw.RequestTimeout, []string{"request_timeout"}},
		{&cfg.Backoff.InitialDelay, raw.Backoff.InitialDelay, []string{"backoff", "initial_delay"}},
		{&cfg.Backoff.MaxDelay, raw.Backoff.MaxDelay, []string{"backoff", "max_delay"}},
	}
	for _, d := range durations {
		if err := setDuration(meta, d.dst, d.src, d.key...); err != nil {
			return client.Config{}, fmt.Errorf("load client config: %w", err)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return client.Config{}, fmt.Errorf("load client config: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, out any) (toml.MetaData, error) {
	meta, err := toml.DecodeFile(path, out)
	if err != nil {
		return meta, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return meta, fmt.Errorf("%w: %s", ErrUnknownKeys, strings.Join(keys, ", "))
	}
	return meta, nil
}

func overlaySecurity(meta toml.MetaData, dst *transport.Security, src transport.Security) {
	if meta.IsDefined("security", "mode") {
		dst.Mode = transport.SecurityMode(strings.TrimSpace(string(src.Mode)))
	}
	set(meta, &dst.TLS.Enabled, src.TLS.Enabled, "security", "tls", "enabled")
	set(meta, &dst.TLS.Mutual, src.TLS.Mutual, "security", "tls", "mutual")
	set(meta, &dst.TLS.InsecureSkipVerify, src.TLS.InsecureSkipVerify, "security", "tls", "insecure_skip_verify")
	setString(meta, &dst.TLS.CertFile, src.TLS.CertFile, "security", "tls", "cert_file")
	setString(meta, &dst.TLS.KeyFile, src.TLS.KeyFile, "security", "tls", "key_file")
	setString(meta, &dst.TLS.CAFile, src.TLS.CAFile, "security", "tls", "ca_file")
	setString(meta, &dst.TLS.ServerName, src.TLS.ServerName, "security", "tls", "server_name")
}

func set[T any](meta toml.MetaData, dst *T, src T, key ...string) {
	if meta.IsDefined(key...) {
		*dst = src
	}
}

func setString(meta toml.MetaData, dst *string, src string, key ...string) {
	if meta.IsDefined(key...) {
		*dst = strings.TrimSpace(src)
	}
}

func setDuration(meta toml.MetaData, dst *time.Duration, src string, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(src))
	if err != nil {
		return fmt.Errorf("%s: %w", strings.Join(key, "."), err)
	}
	*dst = d
	return nil
}

// Package transport builds the TLS settings shared by server and client
// connections.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrInvalidSecurityMode     = errors.New("transport: invalid security mode")
	ErrTLSRequired             = errors.New("transport: tls required")
	ErrMTLSRequired            = errors.New("transport: mtls required")
	ErrTLSCertFileRequired     = errors.New("transport: tls cert file required")
	ErrTLSKeyFileRequired      = errors.New("transport: tls key file required")
	ErrTLSCAFileRequired       = errors.New("transport: tls ca file required")
	ErrTLSInsecureSkipNotAllow = errors.New("transport: insecure skip verify not allowed")
)

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig is the file-based TLS setup for one endpoint.
type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Security is the endpoint policy: production requires mutual TLS.
type Security struct {
	Mode SecurityMode `toml:"mode"`
	TLS  TLSConfig    `toml:"tls"`
}

func NormalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

func (s Security) mode() (SecurityMode, error) {
	mode := NormalizeSecurityMode(s.Mode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSecurityMode, s.Mode)
	}
}

func (s Security) ValidateClient() error {
	mode, err := s.mode()
	if err != nil {
		return err
	}
	if mode == SecurityModeProduction {
		if !s.TLS.Enabled {
			return ErrTLSRequired
		}
		if !s.TLS.Mutual {
			return ErrMTLSRequired
		}
		if s.TLS.InsecureSkipVerify {
			return ErrTLSInsecureSkipNotAllow
		}
	}
	if s.TLS.Mutual && !s.TLS.Enabled {
		return ErrTLSRequired
	}
	if s.TLS.Enabled && strings.TrimSpace(s.TLS.CAFile) == "" && !s.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if s.TLS.Mutual {
		if strings.TrimSpace(s.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(s.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

func (s Security) ValidateServer() error {
	mode, err := s.mode()
	if err != nil {
		return err
	}
	if mode == SecurityModeProduction {
		if !s.TLS.Enabled {
			return ErrTLSRequired
		}
		if !s.TLS.Mutual {
			return ErrMTLSRequired
		}
	}
	if s.TLS.Mutual && !s.TLS.Enabled {
		return ErrTLSRequired
	}
	if s.TLS.Enabled {
		if strings.TrimSpace(s.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(s.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	if s.TLS.Mutual && strings.TrimSpace(s.TLS.CAFile) == "" {
		return ErrTLSCAFileRequired
	}
	return nil
}

// ServerTLS returns nil when TLS is disabled.
func (s Security) ServerTLS() (*tls.Config, error) {
	if err := s.ValidateServer(); err != nil {
		return nil, err
	}
	if !s.TLS.Enabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(s.TLS.CertFile, s.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load server keypair: %w", err)
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if s.TLS.Mutual {
		pool, err := loadPool(s.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// ClientTLS returns nil when TLS is disabled.
func (s Security) ClientTLS() (*tls.Config, error) {
	if err := s.ValidateClient(); err != nil {
		return nil, err
	}
	if !s.TLS.Enabled {
		return nil, nil
	}
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         strings.TrimSpace(s.TLS.ServerName),
		InsecureSkipVerify: s.TLS.InsecureSkipVerify,
	}
	if strings.TrimSpace(s.TLS.CAFile) != "" {
		pool, err := loadPool(s.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if s.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(s.TLS.CertFile, s.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transport: read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("transport: no certificates in %s", path)
	}
	return pool, nil
}

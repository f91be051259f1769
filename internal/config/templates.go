package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/ackwire/internal/client"
	"github.com/danmuck/ackwire/internal/server"
	"github.com/pelletier/go-toml/v2"
)

const (
	KindServer = "server"
	KindClient = "client"
)

// Template renders the default config for kind as TOML.
func Template(kind string) (string, error) {
	var doc any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		doc = serverFileFrom(server.DefaultConfig())
	case KindClient:
		doc = clientFileFrom(client.DefaultConfig())
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		_, err := LoadServerConfig(path)
		return err
	case KindClient:
		_, err := LoadClientConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

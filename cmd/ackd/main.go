package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/ackwire/internal/config"
	"github.com/danmuck/ackwire/internal/observability"
	"github.com/danmuck/ackwire/internal/server"
	flag "github.com/spf13/pflag"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=0.2.0"
var version = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ackd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseFlags(args)
	if errors.Is(err, errVersion) {
		fmt.Printf("ackd %s\n", version)
		return nil
	}
	if err != nil {
		return err
	}
	log := observability.InitLogger(cfg.Name)

	svc, err := server.New(cfg, nil, log)
	if err != nil {
		return err
	}
	return svc.Run()
}

var errVersion = errors.New("version requested")

// parseFlags loads the config file when one is given and applies flag
// overrides on top of it.
func parseFlags(args []string) (server.Config, error) {
	fs := flag.NewFlagSet("ackd", flag.ContinueOnError)
	path := fs.StringP("config", "c", "", "server config file (TOML)")
	listen := fs.StringP("listen", "l", "", "listen address, overrides config")
	admin := fs.StringP("admin", "a", "", "admin HTTP address, overrides config")
	mode := fs.StringP("mode", "m", "", "adapter mode: blocking|async")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return server.Config{}, err
	}
	if *showVersion {
		return server.Config{}, errVersion
	}

	cfg := server.DefaultConfig()
	if *path != "" {
		loaded, err := config.LoadServerConfig(*path)
		if err != nil {
			return server.Config{}, err
		}
		cfg = loaded
	}
	if fs.Changed("listen") {
		cfg.ListenAddr = *listen
	}
	if fs.Changed("admin") {
		cfg.AdminAddr = *admin
	}
	if fs.Changed("mode") {
		cfg.Mode = server.Mode(*mode)
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

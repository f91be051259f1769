package main

import (
	"fmt"
	"os"

	"github.com/danmuck/ackwire/internal/config"
	"github.com/danmuck/ackwire/internal/observability"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func defaultPath(kind string) (string, error) {
	switch kind {
	case config.KindServer:
		return "cmd/ackd/config.toml", nil
	case config.KindClient:
		return "cmd/ackctl/config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("configgen", flag.ContinueOnError)
	kind := fs.StringP("kind", "k", config.KindServer, "config kind: server|client")
	output := fs.StringP("output", "o", "", "output path for config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.StringP("input", "i", "", "config path for validation (defaults to per-kind cmd path)")
	force := fs.BoolP("force", "f", false, "overwrite existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := observability.InitLogger("configgen")

	if *validate {
		path := *input
		if path == "" {
			p, err := defaultPath(*kind)
			if err != nil {
				return err
			}
			path = p
		}
		if err := config.Validate(path, *kind); err != nil {
			return err
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return nil
	}

	target := *output
	if target == "" {
		p, err := defaultPath(*kind)
		if err != nil {
			return err
		}
		target = p
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
	return nil
}

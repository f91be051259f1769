package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/ackwire/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		log:          observability.InitLogger("ackctl"),
		readPassword: terminalPassword,
	}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ackctl: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/ackwire/internal/client"
	"github.com/danmuck/ackwire/internal/config"
	"github.com/danmuck/ackwire/internal/protocol/message"
	"github.com/danmuck/ackwire/internal/protocol/status"
	"github.com/danmuck/ackwire/internal/session"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

const envPassword = "ACKWIRE_PASSWORD"

var (
	ErrUsage    = errors.New("usage")
	ErrRejected = errors.New("rejected")
)

type app struct {
	stdout       io.Writer
	stderr       io.Writer
	log          zerolog.Logger
	readPassword func(prompt string) (string, error)
}

func terminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: no terminal for password prompt; set %s", ErrUsage, envPassword)
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}

func (a *app) usage(fs *flag.FlagSet) {
	fmt.Fprintf(a.stderr, "usage: ackctl [flags] <login|register|notice|logout> [flags]\n\n")
	fs.SetOutput(a.stderr)
	fs.PrintDefaults()
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ackctl", flag.ContinueOnError)
	fs.SetInterspersed(false)
	path := fs.StringP("config", "c", "", "client config file (TOML)")
	addr := fs.StringP("addr", "a", "", "server address, overrides config")
	fs.Usage = func() { a.usage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		a.usage(fs)
		return fmt.Errorf("%w: command required", ErrUsage)
	}

	cfg := client.DefaultConfig()
	if *path != "" {
		loaded, err := config.LoadClientConfig(*path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if fs.Changed("addr") {
		cfg.Addr = *addr
	}

	cmd, cmdArgs := rest[0], rest[1:]
	var handler func(context.Context, *client.Client, []string) error
	switch cmd {
	case "login":
		handler = a.login
	case "register":
		handler = a.register
	case "notice":
		handler = a.notice
	case "logout":
		handler = a.logout
	default:
		a.usage(fs)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}

	c, err := client.Dial(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	defer c.Close()
	return handler(ctx, c, cmdArgs)
}

func (a *app) password(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	if env := os.Getenv(envPassword); env != "" {
		return env, nil
	}
	return a.readPassword("Password: ")
}

func (a *app) login(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.StringP("user", "u", "", "username")
	pass := fs.StringP("password", "p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return fmt.Errorf("%w: login requires --user", ErrUsage)
	}
	pw, err := a.password(*pass)
	if err != nil {
		return err
	}
	res, err := c.Login(ctx, *user, pw)
	if err != nil {
		return err
	}
	return a.printResult(res)
}

func (a *app) register(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	user := fs.StringP("user", "u", "", "username")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	pass := fs.StringP("password", "p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return fmt.Errorf("%w: register requires --user", ErrUsage)
	}
	pw, err := a.password(*pass)
	if err != nil {
		return err
	}
	res, err := c.Register(ctx, session.Register{
		Username:  *user,
		FirstName: *first,
		LastName:  *last,
		Password:  pw,
	})
	if err != nil {
		return err
	}
	return a.printResult(res)
}

func (a *app) notice(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("notice", flag.ContinueOnError)
	token := fs.StringP("token", "t", "", "session token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")
	if *token == "" || text == "" {
		return fmt.Errorf("%w: notice requires --token and text", ErrUsage)
	}
	ack, err := c.Notice(ctx, *token, text)
	if err != nil {
		return err
	}
	return a.printAck(ack)
}

func (a *app) logout(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	token := fs.StringP("token", "t", "", "session token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("%w: logout requires --token", ErrUsage)
	}
	ack, err := c.Logout(ctx, *token)
	if err != nil {
		return err
	}
	return a.printAck(ack)
}

// printResult writes the token on success so the output can be captured
// by a shell.
func (a *app) printResult(res session.LoginResult) error {
	if res.Ack.Code().Class() != status.ClassSuccess || res.Token == nil {
		return fmt.Errorf("%w: %v", ErrRejected, res.Ack)
	}
	fmt.Fprintln(a.stdout, *res.Token)
	return nil
}

func (a *app) printAck(ack message.Acknowledgement) error {
	if ack.Code().Class() != status.ClassSuccess {
		return fmt.Errorf("%w: %v", ErrRejected, ack)
	}
	fmt.Fprintln(a.stdout, ack)
	return nil
}

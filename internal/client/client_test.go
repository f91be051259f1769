package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/status"
	"github.com/danmuck/ackwire/internal/server"
	"github.com/danmuck/ackwire/internal/session"
	"github.com/danmuck/ackwire/internal/testutil/testlog"
	"golang.org/x/crypto/bcrypt"
)

func startServer(t *testing.T, mode server.Mode) string {
	t.Helper()
	log := testlog.Start(t)
	cfg := server.DefaultConfig()
	cfg.Mode = mode
	cfg.BcryptCost = bcrypt.MinCost
	cfg.Users = []server.UserSeed{{Username: "ada", FirstName: "Ada", LastName: "Lovelace", Password: "engine"}}
	svc, err := server.New(cfg, nil, log)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func testClientConfig(addr string) Config {
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.RequestTimeout = 5 * time.Second
	cfg.Backoff = BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 2, MaxDelay: 50 * time.Millisecond}
	return cfg
}

func TestClientConversation(t *testing.T) {
	for _, mode := range []server.Mode{server.ModeBlocking, server.ModeAsync} {
		t.Run(string(mode), func(t *testing.T) {
			addr := startServer(t, mode)
			ctx := context.Background()
			c, err := Dial(ctx, testClientConfig(addr), testlog.Start(t))
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer c.Close()

			res, err := c.Login(ctx, "ada", "engine")
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if !res.Ack.IsOK() || res.Token == nil {
				t.Fatalf("login got=%v", res)
			}
			token := *res.Token

			ack, err := c.Notice(ctx, token, "shelf 3 is full")
			if err != nil || !ack.IsOK() {
				t.Fatalf("notice got=%v err=%v", ack, err)
			}
			ack, err = c.Logout(ctx, token)
			if err != nil || !ack.IsOK() {
				t.Fatalf("logout got=%v err=%v", ack, err)
			}
			ack, err = c.Notice(ctx, token, "late")
			if err != nil || ack.Code() != status.Unauthorized {
				t.Fatalf("notice after logout got=%v err=%v", ack, err)
			}

			reg, err := c.Register(ctx, session.Register{Username: "grace", FirstName: "Grace", LastName: "Hopper", Password: "cobol"})
			if err != nil || reg.Ack.Code() != status.Created || reg.Token == nil {
				t.Fatalf("register got=%v err=%v", reg, err)
			}
		})
	}
}

func TestDialGivesUpAfterAttempts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := testClientConfig(addr)
	cfg.ConnectAttempts = 3
	_, err = Dial(context.Background(), cfg, testlog.Start(t))
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected give up after 3 attempts, got %v", err)
	}
}

func TestDialCancelledDuringBackoff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := testClientConfig(addr)
	cfg.ConnectAttempts = 10
	cfg.Backoff = BackoffConfig{InitialDelay: time.Minute, Multiplier: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Dial(ctx, cfg, testlog.Start(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCallAbortsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		// Accept and never answer.
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	c, err := Dial(context.Background(), testClientConfig(ln.Addr().String()), testlog.Start(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Login(ctx, "ada", "engine")
	if !errors.Is(err, context.DeadlineExceeded) || !protocol.IsTransport(err) {
		t.Fatalf("expected transport deadline exceeded, got %v", err)
	}
	if _, err := c.Logout(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after abort, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative attempts", mutate: func(c *Config) { c.ConnectAttempts = -1 }, wantErr: ErrInvalidConfig},
		{name: "negative timeout", mutate: func(c *Config) { c.DialTimeout = -time.Second }, wantErr: ErrInvalidConfig},
		{name: "negative backoff", mutate: func(c *Config) { c.Backoff.MaxDelay = -time.Second }, wantErr: ErrInvalidConfig},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.WithDefaults().Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("got=%v want=%v", err, tc.wantErr)
			}
		})
	}
}

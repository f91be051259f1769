package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/danmuck/ackwire/internal/server"
	"github.com/danmuck/ackwire/internal/testutil/testlog"
	"golang.org/x/crypto/bcrypt"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.Users = []server.UserSeed{{Username: "ada", Password: "engine"}}
	svc, err := server.New(cfg, nil, testlog.Start(t))
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

func newTestApp(t *testing.T, password string) (*app, *bytes.Buffer) {
	t.Helper()
	t.Setenv(envPassword, "")
	var out bytes.Buffer
	a := &app{
		stdout: &out,
		stderr: &bytes.Buffer{},
		log:    testlog.Start(t),
		readPassword: func(string) (string, error) {
			return password, nil
		},
	}
	return a, &out
}

func TestLoginNoticeLogout(t *testing.T) {
	addr := startServer(t)
	ctx := context.Background()

	a, out := newTestApp(t, "engine")
	if err := a.run(ctx, []string{"--addr", addr, "login", "-u", "ada"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	token := strings.TrimSpace(out.String())
	if token == "" {
		t.Fatalf("login should print a token")
	}

	out.Reset()
	if err := a.run(ctx, []string{"--addr", addr, "notice", "-t", token, "hello", "there"}); err != nil {
		t.Fatalf("notice: %v", err)
	}
	if got := strings.TrimSpace(out.String()); !strings.HasPrefix(got, "200") {
		t.Fatalf("notice output got=%q", got)
	}

	if err := a.run(ctx, []string{"--addr", addr, "logout", "--token", token}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	err := a.run(ctx, []string{"--addr", addr, "logout", "--token", token})
	if !errors.Is(err, ErrRejected) || !strings.Contains(err.Error(), "token expired") {
		t.Fatalf("second logout got=%v", err)
	}
}

func TestRegisterUsesFlagPassword(t *testing.T) {
	addr := startServer(t)
	a, out := newTestApp(t, "")
	a.readPassword = func(string) (string, error) {
		t.Fatalf("prompt should not run when --password is given")
		return "", nil
	}
	args := []string{"--addr", addr, "register", "-u", "grace", "--first", "Grace", "--last", "Hopper", "-p", "cobol"}
	if err := a.run(context.Background(), args); err != nil {
		t.Fatalf("register: %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Fatalf("register should print a token")
	}
}

func TestBadPasswordRejected(t *testing.T) {
	addr := startServer(t)
	a, out := newTestApp(t, "wrong")
	err := a.run(context.Background(), []string{"--addr", addr, "login", "-u", "ada"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("got=%v want=%v", err, ErrRejected)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be printed on rejection, got=%q", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"whoami"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newTestApp(t, "")
			if err := a.run(context.Background(), tc.args); !errors.Is(err, ErrUsage) {
				t.Fatalf("got=%v want=%v", err, ErrUsage)
			}
		})
	}
}

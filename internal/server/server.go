// Package server runs the ackwire conversation over TCP, one goroutine per
// connection, driving each through the blocking or async adapter.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/ackwire/internal/auth"
	"github.com/danmuck/ackwire/internal/observability"
	"github.com/rs/zerolog"
)

type Service struct {
	cfg   Config
	store *auth.Store
	log   zerolog.Logger

	ready    atomic.Bool
	active   atomic.Int64
	accepted atomic.Uint64

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	noticesMu sync.Mutex
	notices   []NoticeRecord
}

// Stats is the snapshot served under the admin /stats route.
type Stats struct {
	Name        string `json:"name"`
	Mode        Mode   `json:"mode"`
	Connections int64  `json:"connections"`
	Accepted    uint64 `json:"accepted"`
	Sessions    int    `json:"sessions"`
	Notices     int    `json:"notices"`
}

// New builds a service. A nil store gets a fresh one at the configured
// bcrypt cost. Configured users are registered into the store.
func New(cfg Config, store *auth.Store, logger zerolog.Logger) (*Service, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = auth.NewStore(cfg.BcryptCost)
	}
	for _, u := range cfg.Users {
		err := store.Add(auth.User{
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}, u.Password)
		if err != nil && !errors.Is(err, auth.ErrUserExists) {
			return nil, fmt.Errorf("server: seed user %q: %w", u.Username, err)
		}
	}
	logger = logger.With().Str("node", cfg.Name).Str("mode", string(cfg.Mode)).Logger()
	if cfg.Frame.Logger == nil {
		frameLog := logger.With().Str("component", "frame").Logger()
		cfg.Frame.Logger = &frameLog
	}
	observability.RegisterMetrics()
	return &Service{
		cfg:   cfg,
		store: store,
		log:   logger,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) Store() *auth.Store { return s.store }

func (s *Service) Ready() bool { return s.ready.Load() }

func (s *Service) Stats() Stats {
	s.noticesMu.Lock()
	notices := len(s.notices)
	s.noticesMu.Unlock()
	return Stats{
		Name:        s.cfg.Name,
		Mode:        s.cfg.Mode,
		Connections: s.active.Load(),
		Accepted:    s.accepted.Load(),
		Sessions:    s.store.Active(),
		Notices:     notices,
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext listens on the configured address, starts the admin router
// when configured and serves until ctx ends.
func (s *Service) RunContext(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.cfg.Security.TLS.Enabled).Msg("listening")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

func (s *Service) listen() (net.Listener, error) {
	tlsCfg, err := s.cfg.Security.ServerTLS()
	if err != nil {
		return nil, err
	}
	if tlsCfg == nil {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

// Serve accepts connections on ln until ctx ends. Open connections are
// closed on shutdown and Serve waits for their handlers to return.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	go func() {
		<-ctx.Done()
		s.ready.Store(false)
		s.closeAllConns()
		_ = ln.Close()
	}()

	s.ready.Store(true)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		if ctx.Err() != nil {
			// accepted after closeAllConns ran
			_ = conn.Close()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	admin := observability.AdminConfig{
		Node:        s.cfg.Name,
		CorsOrigins: s.cfg.CorsOrigins,
		Logger:      s.log.With().Str("component", "admin").Logger(),
		Ready:       s.Ready,
		Stats:       func() any { return s.Stats() },
	}
	if s.cfg.AdminToken != "" {
		admin.StatsAuth = auth.StaticToken{Token: s.cfg.AdminToken}
	}
	router := observability.NewAdminRouter(admin)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", addr).Msg("admin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: admin: %w", err)
	}
	return nil
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

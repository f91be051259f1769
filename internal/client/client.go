// Package client dials an ackwire server and runs the login conversation
// over the blocking adapter.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/message"
	"github.com/danmuck/ackwire/internal/session"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("client: closed")

// Client holds one connection. Requests are serialized; each waits for its
// reply before the next is sent.
type Client struct {
	cfg  Config
	log  zerolog.Logger
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to cfg.Addr, retrying with backoff up to
// cfg.ConnectAttempts times.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.Security.ClientTLS()
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("addr", cfg.Addr).Logger()
	if cfg.Frame.Logger == nil {
		frameLog := logger.With().Str("component", "frame").Logger()
		cfg.Frame.Logger = &frameLog
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		if attempt > 1 {
			delay := NextBackoffDelay(cfg.Backoff, attempt-1, rng)
			logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("dial retry")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		conn, err := dial(ctx, cfg, tlsCfg)
		if err == nil {
			logger.Debug().Int("attempt", attempt).Msg("connected")
			return &Client{cfg: cfg, log: logger, conn: conn}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("client: dial %s after %d attempts: %w", cfg.Addr, cfg.ConnectAttempts, lastErr)
}

func dial(ctx context.Context, cfg Config, tlsCfg *tls.Config) (net.Conn, error) {
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	if tlsCfg == nil {
		return d.DialContext(ctx, "tcp", cfg.Addr)
	}
	td := &tls.Dialer{NetDialer: d, Config: tlsCfg}
	return td.DialContext(ctx, "tcp", cfg.Addr)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) Login(ctx context.Context, username, password string) (session.LoginResult, error) {
	return call[session.LoginResult](ctx, c, session.Login{Username: username, Password: password})
}

func (c *Client) Register(ctx context.Context, req session.Register) (session.LoginResult, error) {
	return call[session.LoginResult](ctx, c, req)
}

func (c *Client) Notice(ctx context.Context, token, text string) (message.Acknowledgement, error) {
	return call[message.Acknowledgement](ctx, c, session.Notice{Token: token, Text: text})
}

func (c *Client) Logout(ctx context.Context, token string) (message.Acknowledgement, error) {
	return call[message.Acknowledgement](ctx, c, session.Logout{Token: token})
}

// call sends req and reads one reply of type T. Any protocol error closes
// the connection since the stream position is no longer known.
func call[T message.Response](ctx context.Context, c *Client, req session.Kinded) (T, error) {
	var zero T
	env, err := session.Seal(req)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.conn
	if conn == nil {
		return zero, ErrClosed
	}
	var deadline time.Time
	if c.cfg.RequestTimeout > 0 {
		deadline = time.Now().Add(c.cfg.RequestTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return zero, protocol.Wrap(protocol.KindTransport, "deadline", err)
	}
	// The next call resets the deadline, so it only has to run after a
	// callback that already started.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	if err := message.SendRequest(conn, env, c.cfg.Frame); err != nil {
		c.abort(err)
		return zero, err
	}
	res, err := message.ReceiveResponse[T](conn, c.cfg.Frame)
	if err != nil {
		c.abort(err)
		if ctx.Err() != nil {
			return zero, protocol.Wrap(protocol.KindTransport, "receive", ctx.Err())
		}
		return zero, err
	}
	c.log.Debug().Stringer("request", req).Stringer("reply", res).Msg("round trip")
	return res, nil
}

func (c *Client) abort(err error) {
	c.log.Warn().Err(err).Msg("closing connection after protocol error")
	_ = c.conn.Close()
	c.conn = nil
}

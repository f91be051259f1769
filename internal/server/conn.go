package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/ackwire/internal/observability"
	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/async"
	"github.com/danmuck/ackwire/internal/protocol/frame"
	"github.com/danmuck/ackwire/internal/protocol/message"
	"github.com/danmuck/ackwire/internal/protocol/status"
	"github.com/danmuck/ackwire/internal/session"
	"github.com/danmuck/ackwire/internal/transport"
	"github.com/rs/zerolog"
)

// wire moves whole frames for one connection.
type wire interface {
	read(ctx context.Context) ([]byte, error)
	write(ctx context.Context, payload []byte) error
}

// blockingWire bounds each call with conn deadlines and ignores ctx; shutdown
// reaches it through conn.Close.
type blockingWire struct {
	conn         net.Conn
	cfg          frame.Config
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func (w *blockingWire) read(context.Context) ([]byte, error) {
	if err := w.conn.SetReadDeadline(deadline(w.idleTimeout)); err != nil {
		return nil, protocol.Wrap(protocol.KindTransport, "read", err)
	}
	return frame.ReadFrame(w.conn, w.cfg)
}

func (w *blockingWire) write(_ context.Context, payload []byte) error {
	if err := w.conn.SetWriteDeadline(deadline(w.writeTimeout)); err != nil {
		return protocol.Wrap(protocol.KindTransport, "write", err)
	}
	return frame.WriteFrame(w.conn, payload, w.cfg)
}

// asyncWire derives a per-call context from the connection context.
type asyncWire struct {
	stream       *async.Conn
	cfg          frame.Config
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func (w *asyncWire) read(ctx context.Context) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, w.idleTimeout)
	defer cancel()
	return async.ReadFrame(ctx, w.stream, w.cfg)
}

func (w *asyncWire) write(ctx context.Context, payload []byte) error {
	ctx, cancel := withTimeout(ctx, w.writeTimeout)
	defer cancel()
	return async.WriteFrame(ctx, w.stream, payload, w.cfg)
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *Service) newWire(conn net.Conn) wire {
	if s.cfg.Mode == ModeAsync {
		return &asyncWire{
			stream:       async.NewConn(conn),
			cfg:          s.cfg.Frame,
			idleTimeout:  s.cfg.IdleTimeout,
			writeTimeout: s.cfg.WriteTimeout,
		}
	}
	return &blockingWire{
		conn:         conn,
		cfg:          s.cfg.Frame,
		idleTimeout:  s.cfg.IdleTimeout,
		writeTimeout: s.cfg.WriteTimeout,
	}
}

// handleConn runs the request/reply loop until the peer closes or a protocol
// error ends the connection.
func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	remote := conn.RemoteAddr().String()
	s.accepted.Add(1)
	active := s.active.Add(1)
	observability.ConnOpened()
	log := s.log.With().Str("remote", remote).Logger()
	log.Info().Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.ConnClosed()
		log.Info().Int64("active_clients", remaining).Msg("client disconnected")
	}()

	peer, err := transport.Handshake(ctx, conn, s.cfg.HandshakeTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("tls handshake failed")
		return
	}
	if peer != "" {
		log = log.With().Str("peer", peer).Logger()
	}

	w := s.newWire(conn)
	mode := string(s.cfg.Mode)
	for {
		payload, err := w.read(ctx)
		if err != nil {
			s.logReadEnd(log, err)
			return
		}
		observability.RecordFrame(observability.DirectionIn, mode, len(payload))

		reply, keep := s.respond(log, payload)
		if reply == nil {
			return
		}
		if err := w.write(ctx, reply); err != nil {
			observability.RecordProtocolError(err)
			log.Warn().Err(err).Msg("write reply failed")
			return
		}
		observability.RecordFrame(observability.DirectionOut, mode, len(reply))
		if !keep {
			return
		}
	}
}

// respond decodes one request payload and returns the encoded reply. keep is
// false when the connection must close after the reply is written.
func (s *Service) respond(log zerolog.Logger, payload []byte) (reply []byte, keep bool) {
	env, err := message.Decode[session.Envelope](payload, s.cfg.Frame)
	if err == nil {
		reply, err = s.dispatch(log, env)
		if err == nil {
			return reply, true
		}
	}

	observability.RecordProtocolError(err)
	if !protocol.IsSchema(err) && !protocol.IsEncoding(err) {
		log.Error().Err(err).Msg("request failed")
		return nil, false
	}
	log.Warn().Err(err).Msg("rejecting malformed request")
	observability.RecordRequest("invalid", status.BadRequest.String())
	reply, err = message.Marshal(message.NewAckMessage(status.BadRequest, err.Error()))
	if err != nil {
		log.Error().Err(err).Msg("encode rejection failed")
		return nil, false
	}
	return reply, false
}

func (s *Service) logReadEnd(log zerolog.Logger, err error) {
	switch {
	case protocol.IsTransport(err) && errors.Is(err, io.EOF):
		log.Debug().Msg("client closed")
	case errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed):
		log.Debug().Err(err).Msg("connection closed by shutdown")
	default:
		observability.RecordProtocolError(err)
		log.Warn().Err(err).Msg("read request failed")
	}
}

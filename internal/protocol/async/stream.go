package async

import (
	"context"
	"io"
	"net"
	"time"
)

// Stream is a byte stream whose every read and write is bound to a context.
// Each call is one suspension point: it parks the calling goroutine until the
// transport is ready or ctx ends.
type Stream interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// expired is a deadline in the past; setting it aborts a parked conn call.
var expired = time.Unix(1, 0)

// Conn adapts a net.Conn. An in-flight read or write is interrupted when its
// context ends and the call returns ctx.Err().
type Conn struct {
	conn net.Conn
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

func (c *Conn) ReadContext(ctx context.Context, p []byte) (int, error) {
	return c.do(ctx, c.conn.SetReadDeadline, c.conn.Read, p)
}

func (c *Conn) WriteContext(ctx context.Context, p []byte) (int, error) {
	return c.do(ctx, c.conn.SetWriteDeadline, c.conn.Write, p)
}

func (c *Conn) Close() error { return c.conn.Close() }

func (c *Conn) do(
	ctx context.Context,
	setDeadline func(time.Time) error,
	op func([]byte) (int, error),
	p []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := setDeadline(time.Time{}); err != nil {
		return 0, err
	}
	n, err := interruptible(ctx, setDeadline, func() (int, error) { return op(p) })
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// interruptible runs call with setDeadline(expired) armed on ctx. When the
// callback has already started, it waits for it and clears the deadline so
// the next call on the conn does not inherit it.
func interruptible(ctx context.Context, setDeadline func(time.Time) error, call func() (int, error)) (int, error) {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = setDeadline(expired)
	})
	n, err := call()
	if !stop() {
		<-fired
		_ = setDeadline(time.Time{})
	}
	return n, err
}

// RW adapts a plain io.ReadWriter. The context is checked at each call
// boundary; a call already parked in the underlying reader is not interrupted.
type RW struct {
	rw io.ReadWriter
}

func Wrap(rw io.ReadWriter) *RW {
	return &RW{rw: rw}
}

func (s *RW) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.rw.Read(p)
}

func (s *RW) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.rw.Write(p)
}

package async

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/frame"
	"github.com/danmuck/ackwire/internal/protocol/message"
	"github.com/danmuck/ackwire/internal/protocol/status"
	"github.com/danmuck/ackwire/internal/testutil/testlog"
)

func testConfig(t *testing.T) frame.Config {
	log := testlog.Start(t)
	cfg := frame.DefaultConfig()
	cfg.Logger = &log
	return cfg
}

type result[T any] struct {
	Value T
	Err   error
}

// spawn runs fn on its own goroutine; the buffered channel lets it finish
// even when the test has already failed.
func spawn[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) <-chan result[T] {
	out := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		out <- result[T]{Value: v, Err: err}
	}()
	return out
}

func TestAsyncAndBlockingFramesAreIdentical(t *testing.T) {
	cfg := testConfig(t)
	ack := message.NewAckMessage(status.Unauthorized, "token expired")

	var blocking bytes.Buffer
	if err := message.SendResponse(&blocking, ack, cfg); err != nil {
		t.Fatalf("blocking send: %v", err)
	}
	var async bytes.Buffer
	if err := SendResponse(context.Background(), Wrap(&async), ack, cfg); err != nil {
		t.Fatalf("async send: %v", err)
	}
	if !bytes.Equal(blocking.Bytes(), async.Bytes()) {
		t.Fatalf("wire mismatch:\nblocking=%q\nasync=%q", blocking.Bytes(), async.Bytes())
	}

	got, err := ReceiveResponse[message.Acknowledgement](context.Background(), Wrap(&blocking), cfg)
	if err != nil {
		t.Fatalf("async receive of blocking frame: %v", err)
	}
	if !got.Equal(ack) {
		t.Fatalf("unexpected ack: %v", got)
	}
	got, err = message.ReceiveResponse[message.Acknowledgement](&async, cfg)
	if err != nil {
		t.Fatalf("blocking receive of async frame: %v", err)
	}
	if !got.Equal(ack) {
		t.Fatalf("unexpected ack: %v", got)
	}
}

func TestConnRoundTripOverPipe(t *testing.T) {
	cfg := testConfig(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := []message.Acknowledgement{
		message.NewAck(status.OK),
		message.NewAckMessage(status.Conflict, "username taken"),
	}
	sent := spawn(ctx, func(ctx context.Context) (struct{}, error) {
		s := NewConn(client)
		for _, ack := range want {
			if err := SendRequest(ctx, s, ack, cfg); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})

	s := NewConn(server)
	for i, ack := range want {
		got, err := ReceiveRequest[message.Acknowledgement](ctx, s, cfg)
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if !got.Equal(ack) {
			t.Fatalf("receive %d got=%v want=%v", i, got, ack)
		}
	}
	if res := <-sent; res.Err != nil {
		t.Fatalf("send: %v", res.Err)
	}
}

func TestConnReadCancelled(t *testing.T) {
	cfg := testConfig(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := spawn(ctx, func(ctx context.Context) ([]byte, error) {
		return ReadFrame(ctx, NewConn(server), cfg)
	})
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", res.Err)
		}
		if !protocol.IsTransport(res.Err) {
			t.Fatalf("expected transport kind, got %v", res.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("read did not abort after cancel")
	}
}

func TestConnReadDeadline(t *testing.T) {
	cfg := testConfig(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := ReadFrame(ctx, NewConn(server), cfg)
	if !protocol.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestConnTruncatedAfterPrefix(t *testing.T) {
	cfg := testConfig(t)
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte{0, 0, 0, 32})
		_ = client.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Receive[message.Acknowledgement](ctx, NewConn(server), cfg)
	if !errors.Is(err, protocol.ErrTruncated) || !protocol.IsFraming(err) {
		t.Fatalf("expected framing ErrTruncated, got %v", err)
	}
}

func TestWrapChecksContextAtBoundary(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Send(ctx, Wrap(&buf), message.NewAck(status.OK), cfg)
	if !errors.Is(err, context.Canceled) || !protocol.IsTransport(err) {
		t.Fatalf("expected transport context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("cancelled send wrote %d bytes", buf.Len())
	}
}

func TestAsyncNeverConsumesNextFrame(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	first := message.NewAck(status.OK)
	second := message.NewAckMessage(status.Gone, "logged out")
	if err := message.Send(&buf, first, cfg); err != nil {
		t.Fatalf("send first: %v", err)
	}
	if err := message.Send(&buf, second, cfg); err != nil {
		t.Fatalf("send second: %v", err)
	}

	s := Wrap(&buf)
	for _, want := range []message.Acknowledgement{first, second} {
		got, err := Receive[message.Acknowledgement](context.Background(), s, cfg)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if !got.Equal(want) {
			t.Fatalf("got=%v want=%v", got, want)
		}
	}
}

func TestCancelledReadDoesNotPoisonNextRead(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer server.Close()
	go func() {
		defer client.Close()
		b := []byte{'x'}
		for {
			if _, err := client.Write(b); err != nil {
				return
			}
		}
	}()

	s := NewConn(server)
	buf := make([]byte, 1)
	for i := 0; i < 5000; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go cancel()
		_, _ = s.ReadContext(ctx, buf)
		cancel()
		if _, err := s.ReadContext(context.Background(), buf); err != nil {
			t.Fatalf("iteration %d: read on live context failed: %v", i, err)
		}
	}
}

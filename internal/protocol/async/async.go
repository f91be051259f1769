package async

import (
	"context"

	"github.com/danmuck/ackwire/internal/protocol/frame"
	"github.com/danmuck/ackwire/internal/protocol/message"
)

// WriteFrame writes payload to s as one frame, suspending at each write.
func WriteFrame(ctx context.Context, s Stream, payload []byte, cfg frame.Config) error {
	return frame.Write(func(p []byte) (int, error) {
		return s.WriteContext(ctx, p)
	}, payload, cfg)
}

// ReadFrame reads one frame from s, suspending at each read.
func ReadFrame(ctx context.Context, s Stream, cfg frame.Config) ([]byte, error) {
	return frame.Read(func(p []byte) (int, error) {
		return s.ReadContext(ctx, p)
	}, cfg)
}

func Send[T message.Message](ctx context.Context, s Stream, msg T, cfg frame.Config) error {
	payload, err := message.Marshal(msg)
	if err != nil {
		return err
	}
	return WriteFrame(ctx, s, payload, cfg)
}

func Receive[T message.Message](ctx context.Context, s Stream, cfg frame.Config) (T, error) {
	payload, err := ReadFrame(ctx, s, cfg)
	if err != nil {
		var zero T
		return zero, err
	}
	return message.Decode[T](payload, cfg)
}

func SendRequest[T message.Request](ctx context.Context, s Stream, msg T, cfg frame.Config) error {
	return Send(ctx, s, msg, cfg)
}

func SendResponse[T message.Response](ctx context.Context, s Stream, msg T, cfg frame.Config) error {
	return Send(ctx, s, msg, cfg)
}

func ReceiveRequest[T message.Request](ctx context.Context, s Stream, cfg frame.Config) (T, error) {
	return Receive[T](ctx, s, cfg)
}

func ReceiveResponse[T message.Response](ctx context.Context, s Stream, cfg frame.Config) (T, error) {
	return Receive[T](ctx, s, cfg)
}

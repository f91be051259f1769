package frame

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/rs/zerolog"
)

const (
	// PrefixLen is the size of the big-endian payload length prefix.
	PrefixLen = 4
	// DefaultChunkSize bounds a single underlying read.
	DefaultChunkSize = 4096
	// DefaultMaxPayload caps a declared frame length.
	DefaultMaxPayload uint32 = 16 * 1024 * 1024

	maxConsecutiveEmptyReads = 100
	initialPayloadCap        = 64 * 1024
)

// Config constrains frame encode/decode.
type Config struct {
	MaxPayloadBytes uint32
	ChunkSize       int
	// Logger receives debug/trace diagnostics. Nil disables them.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxPayloadBytes: DefaultMaxPayload,
		ChunkSize:       DefaultChunkSize,
	}
}

// WithDefaults fills zero-valued limits.
func (c Config) WithDefaults() Config {
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = DefaultMaxPayload
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	return c
}

func (c Config) logger() *zerolog.Logger {
	if c.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Logger
}

// ReadFunc performs one underlying read.
type ReadFunc func(p []byte) (int, error)

// WriteFunc performs one underlying write.
type WriteFunc func(p []byte) (int, error)

// WriteFrame writes payload to w as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte, cfg Config) error {
	return Write(w.Write, payload, cfg)
}

// ReadFrame reads one length-prefixed frame from r and returns its payload.
func ReadFrame(r io.Reader, cfg Config) ([]byte, error) {
	return Read(r.Read, cfg)
}

// Write frames payload through step. Partial writes are retried until every
// byte, prefix included, is accepted.
func Write(step WriteFunc, payload []byte, cfg Config) error {
	cfg = cfg.WithDefaults()
	if uint64(len(payload)) > math.MaxUint32 || uint32(len(payload)) > cfg.MaxPayloadBytes {
		return protocol.Wrap(protocol.KindFraming, "write frame", protocol.ErrPayloadTooLarge)
	}

	var prefix [PrefixLen]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if err := writeAll(step, prefix[:]); err != nil {
		return protocol.Wrap(protocol.KindTransport, "write frame", err)
	}
	if err := writeAll(step, payload); err != nil {
		return protocol.Wrap(protocol.KindTransport, "write frame", err)
	}
	cfg.logger().Debug().Int("bytes", len(payload)).Msg("frame encoded")
	return nil
}

// Read decodes one frame through step. Each underlying read asks for at most
// min(ChunkSize, remaining) bytes so the next frame is never consumed.
func Read(step ReadFunc, cfg Config) ([]byte, error) {
	cfg = cfg.WithDefaults()
	log := cfg.logger()

	var prefix [PrefixLen]byte
	n, err := readFull(step, prefix[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, protocol.Wrap(protocol.KindTransport, "read frame", io.EOF)
		}
		return nil, classifyReadErr(err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > cfg.MaxPayloadBytes {
		return nil, protocol.Wrap(protocol.KindFraming, "read frame", protocol.ErrPayloadTooLarge)
	}
	log.Debug().Uint32("bytes", length).Msg("decoding frame")

	out := make([]byte, 0, min(int(length), initialPayloadCap))
	chunk := make([]byte, min(cfg.ChunkSize, int(length)))
	empty := 0
	for len(out) < int(length) {
		want := min(len(chunk), int(length)-len(out))
		got, err := step(chunk[:want])
		out = append(out, chunk[:got]...)
		log.Trace().Int("chunk", got).Int("have", len(out)).Uint32("want", length).Msg("frame chunk")
		if len(out) == int(length) {
			break
		}
		if err != nil {
			return nil, classifyReadErr(err)
		}
		if got == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return nil, classifyReadErr(io.ErrNoProgress)
			}
			continue
		}
		empty = 0
	}
	log.Debug().Int("bytes", len(out)).Msg("frame decoded")
	return out, nil
}

func writeAll(step WriteFunc, p []byte) error {
	for written := 0; written < len(p); {
		n, err := step(p[written:])
		written += n
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// readFull fills p; it reports how many bytes were read before failing.
func readFull(step ReadFunc, p []byte) (int, error) {
	have, empty := 0, 0
	for have < len(p) {
		n, err := step(p[have:])
		have += n
		if have == len(p) {
			return have, nil
		}
		if err != nil {
			return have, err
		}
		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return have, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return have, nil
}

// classifyReadErr maps a mid-frame failure onto the taxonomy. End of stream
// and a stalled reader mean the declared length cannot be satisfied.
func classifyReadErr(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrNoProgress):
		return protocol.Wrap(protocol.KindFraming, "read frame", errors.Join(protocol.ErrTruncated, err))
	default:
		return protocol.Wrap(protocol.KindTransport, "read frame", err)
	}
}

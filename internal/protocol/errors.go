package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated       = errors.New("protocol: truncated frame")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	ErrInvalidUTF8     = errors.New("protocol: payload is not valid utf-8")
	ErrDuplicateField  = errors.New("protocol: duplicate field")
	ErrMissingField    = errors.New("protocol: missing field")
	ErrNestingTooDeep  = errors.New("protocol: nesting too deep")
)

// Kind classifies a protocol failure.
type Kind uint8

const (
	// KindTransport means the stream itself failed (read/write error, closed, cancelled).
	KindTransport Kind = iota + 1
	// KindFraming means the declared frame length could not be honored.
	KindFraming
	// KindEncoding means the payload bytes are not valid UTF-8.
	KindEncoding
	// KindSchema means the payload is not JSON or does not fit the target type.
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindEncoding:
		return "encoding"
	case KindSchema:
		return "schema"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is a classified protocol failure.
type Error struct {
	Kind Kind
	Op   string // "write frame", "read frame", "marshal", "unmarshal", ...
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err. A nil err stays nil, and an err that already carries
// a Kind is returned unchanged.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind carried by err.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

func IsTransport(err error) bool { return isKind(err, KindTransport) }
func IsFraming(err error) bool   { return isKind(err, KindFraming) }
func IsEncoding(err error) bool  { return isKind(err, KindEncoding) }
func IsSchema(err error) bool    { return isKind(err, KindSchema) }

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

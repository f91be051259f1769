package session

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/message"
)

// Envelope carries one request and the kind that tells the server how to
// decode its body.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body"`
}

var _ message.Request = Envelope{}

func (Envelope) RequestMessage() {}

func (e Envelope) String() string {
	return fmt.Sprintf("envelope %s (%d bytes)", e.Kind, len(e.Body))
}

func (e Envelope) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("%w: kind", protocol.ErrMissingField)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if len(e.Body) == 0 || string(e.Body) == "null" {
		return fmt.Errorf("%w: body", protocol.ErrMissingField)
	}
	return nil
}

// Seal wraps req in an Envelope tagged with its kind.
func Seal(req Kinded) (Envelope, error) {
	body, err := message.Marshal(req)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: req.Kind(), Body: body}, nil
}

// Open decodes the envelope body as T. It fails when the envelope names a
// different kind.
func Open[T Kinded](env Envelope) (T, error) {
	var zero T
	if env.Kind != zero.Kind() {
		return zero, protocol.Wrap(protocol.KindSchema, "open",
			fmt.Errorf("%w: envelope is %q, want %q", ErrUnknownKind, env.Kind, zero.Kind()))
	}
	return message.Unmarshal[T](env.Body)
}

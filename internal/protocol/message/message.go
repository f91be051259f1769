package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/frame"
)

// Message is any value carried as one JSON document in one frame.
type Message interface {
	fmt.Stringer
}

// Request marks a message that may be sent or received as a request.
type Request interface {
	Message
	RequestMessage()
}

// Response marks a message that may be sent or received as a response.
type Response interface {
	Message
	ResponseMessage()
}

// Validator is implemented by messages that have required fields or
// constrained values beyond what JSON decoding enforces.
type Validator interface {
	Validate() error
}

// Marshal encodes msg as a JSON payload.
func Marshal[T Message](msg T) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindSchema, "marshal", err)
	}
	return payload, nil
}

// Unmarshal decodes one payload into T. The payload must be UTF-8, must not
// repeat an object key, and must satisfy T's Validate when T has one.
func Unmarshal[T Message](payload []byte) (T, error) {
	var out T
	if !utf8.Valid(payload) {
		return out, protocol.Wrap(protocol.KindEncoding, "unmarshal", protocol.ErrInvalidUTF8)
	}
	if err := checkDuplicateKeys(payload); err != nil {
		return out, protocol.Wrap(protocol.KindSchema, "unmarshal", err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, protocol.Wrap(protocol.KindSchema, "unmarshal", err)
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, protocol.Wrap(protocol.KindSchema, "unmarshal", err)
		}
	}
	return out, nil
}

// Send writes msg to w as one frame.
func Send[T Message](w io.Writer, msg T, cfg frame.Config) error {
	payload, err := Marshal(msg)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, payload, cfg)
}

// Receive reads one frame from r and decodes it into T.
func Receive[T Message](r io.Reader, cfg frame.Config) (T, error) {
	payload, err := frame.ReadFrame(r, cfg)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](payload, cfg)
}

func SendRequest[T Request](w io.Writer, msg T, cfg frame.Config) error {
	return Send(w, msg, cfg)
}

func SendResponse[T Response](w io.Writer, msg T, cfg frame.Config) error {
	return Send(w, msg, cfg)
}

func ReceiveRequest[T Request](r io.Reader, cfg frame.Config) (T, error) {
	return Receive[T](r, cfg)
}

func ReceiveResponse[T Response](r io.Reader, cfg frame.Config) (T, error) {
	return Receive[T](r, cfg)
}

// Decode is Unmarshal plus the frame config's diagnostics. Adapters call it
// after reading a payload with their own transport.
func Decode[T Message](payload []byte, cfg frame.Config) (T, error) {
	msg, err := Unmarshal[T](payload)
	if cfg.Logger != nil {
		if err != nil {
			cfg.Logger.Debug().Err(err).Int("bytes", len(payload)).Msg("message rejected")
		} else {
			cfg.Logger.Debug().Stringer("message", msg).Msg("message decoded")
		}
	}
	return msg, err
}

// MaxDepth bounds object and array nesting in a payload. encoding/json
// enforces the same limit on Unmarshal; the token walk below does not.
const MaxDepth = 10000

// container is one open object or array during the duplicate-key walk.
type container struct {
	object    bool
	expectKey bool
	key       string
	index     int
	seen      map[string]struct{}
}

// checkDuplicateKeys walks the document and fails on the first object that
// repeats a key. encoding/json keeps the last value silently.
func checkDuplicateKeys(payload []byte) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var stack []container
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectKey {
			if delim, ok := tok.(json.Delim); ok && delim == '}' {
				stack = stack[:n-1]
				if len(stack) == 0 {
					return nil
				}
				continue
			}
			top := &stack[n-1]
			key, _ := tok.(string)
			if _, dup := top.seen[key]; dup {
				return fmt.Errorf("%w: %s", protocol.ErrDuplicateField, keyPath(stack, key))
			}
			top.seen[key] = struct{}{}
			top.key = key
			top.expectKey = false
			continue
		}

		delim, isDelim := tok.(json.Delim)
		if isDelim && (delim == '}' || delim == ']') {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return nil
			}
			continue
		}

		// tok starts a value inside the current container, or is the root.
		if n := len(stack); n > 0 {
			top := &stack[n-1]
			if top.object {
				top.expectKey = true
			} else {
				top.index++
			}
		}
		if !isDelim {
			if len(stack) == 0 {
				return nil
			}
			continue
		}
		if len(stack) >= MaxDepth {
			return fmt.Errorf("%w: %d levels", protocol.ErrNestingTooDeep, MaxDepth)
		}
		if delim == '{' {
			stack = append(stack, container{object: true, expectKey: true, seen: make(map[string]struct{})})
		} else {
			stack = append(stack, container{})
		}
	}
}

// keyPath renders the location of key inside the innermost container.
func keyPath(stack []container, key string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, c := range stack[:len(stack)-1] {
		if c.object {
			b.WriteString("." + c.key)
		} else {
			b.WriteString("[" + strconv.Itoa(c.index-1) + "]")
		}
	}
	b.WriteString("." + key)
	return b.String()
}

package message

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/status"
)

// Acknowledgement is a general purpose status reply. It is valid as a
// request, a response, or a standalone notification.
type Acknowledgement struct {
	code    status.Code
	message *string
}

var (
	_ Request  = Acknowledgement{}
	_ Response = Acknowledgement{}
)

func NewAck(code status.Code) Acknowledgement {
	return Acknowledgement{code: code}
}

func NewAckMessage(code status.Code, message string) Acknowledgement {
	return Acknowledgement{code: code, message: &message}
}

func (a Acknowledgement) Code() status.Code { return a.code }

// Message returns the optional explanation.
func (a Acknowledgement) Message() (string, bool) {
	if a.message == nil {
		return "", false
	}
	return *a.message, true
}

func (a Acknowledgement) IsOK() bool { return a.code == status.OK }

// Equal reports whether status and text match.
func (a Acknowledgement) Equal(other Acknowledgement) bool {
	if a.code != other.code {
		return false
	}
	if a.message == nil || other.message == nil {
		return a.message == nil && other.message == nil
	}
	return *a.message == *other.message
}

func (a Acknowledgement) String() string {
	if a.message == nil {
		return fmt.Sprintf("%d %s", uint16(a.code), a.code)
	}
	return fmt.Sprintf("%d %s: %s", uint16(a.code), a.code, strconv.Quote(*a.message))
}

func (Acknowledgement) RequestMessage()  {}
func (Acknowledgement) ResponseMessage() {}

type ackWire struct {
	Code    *status.Code `json:"code"`
	Message *string      `json:"message"`
}

func (a Acknowledgement) MarshalJSON() ([]byte, error) {
	code := a.code
	return json.Marshal(ackWire{Code: &code, Message: a.message})
}

func (a *Acknowledgement) UnmarshalJSON(data []byte) error {
	var raw ackWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Code == nil {
		return fmt.Errorf("%w: code", protocol.ErrMissingField)
	}
	a.code = *raw.Code
	a.message = raw.Message
	return nil
}

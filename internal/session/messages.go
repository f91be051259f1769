package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/danmuck/ackwire/internal/protocol/message"
	"github.com/danmuck/ackwire/internal/protocol/status"
)

var ErrUnknownKind = errors.New("session: unknown kind")

// Kind names a request type inside an Envelope.
type Kind string

const (
	KindLogin    Kind = "login"
	KindRegister Kind = "register"
	KindNotice   Kind = "notice"
	KindLogout   Kind = "logout"
)

func (k Kind) Valid() bool {
	switch k {
	case KindLogin, KindRegister, KindNotice, KindLogout:
		return true
	default:
		return false
	}
}

// Kinded is a request that can be sealed into an Envelope.
type Kinded interface {
	message.Request
	Kind() Kind
}

var (
	_ Kinded           = Login{}
	_ Kinded           = Register{}
	_ Kinded           = Notice{}
	_ Kinded           = Logout{}
	_ message.Response = LoginResult{}
)

type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (Login) Kind() Kind       { return KindLogin }
func (Login) RequestMessage()  {}
func (l Login) String() string { return "login " + l.Username }

func (l Login) Validate() error {
	if err := required("username", l.Username); err != nil {
		return err
	}
	return required("password", l.Password)
}

type Register struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

func (Register) Kind() Kind       { return KindRegister }
func (Register) RequestMessage()  {}
func (r Register) String() string { return "register " + r.Username }

func (r Register) Validate() error {
	if err := required("username", r.Username); err != nil {
		return err
	}
	if err := required("first_name", r.FirstName); err != nil {
		return err
	}
	if err := required("last_name", r.LastName); err != nil {
		return err
	}
	return required("password", r.Password)
}

// Notice is an authenticated free-text message, answered with an
// Acknowledgement.
type Notice struct {
	Token string `json:"token"`
	Text  string `json:"text"`
}

func (Notice) Kind() Kind      { return KindNotice }
func (Notice) RequestMessage() {}

func (n Notice) String() string {
	return fmt.Sprintf("notice (%d bytes)", len(n.Text))
}

func (n Notice) Validate() error {
	return required("token", n.Token)
}

type Logout struct {
	Token string `json:"token"`
}

func (Logout) Kind() Kind      { return KindLogout }
func (Logout) RequestMessage() {}
func (Logout) String() string  { return "logout" }

func (l Logout) Validate() error {
	return required("token", l.Token)
}

// LoginResult answers Login and Register. Token is set only on success.
type LoginResult struct {
	Ack   message.Acknowledgement `json:"ack"`
	Token *string                 `json:"token"`
}

func Granted(ack message.Acknowledgement, token string) LoginResult {
	return LoginResult{Ack: ack, Token: &token}
}

func Denied(ack message.Acknowledgement) LoginResult {
	return LoginResult{Ack: ack}
}

func (LoginResult) ResponseMessage() {}

func (r LoginResult) String() string {
	if r.Token == nil {
		return "login result " + r.Ack.String()
	}
	return "login result " + r.Ack.String() + " (token issued)"
}

func (r LoginResult) Validate() error {
	if !r.Ack.Code().Valid() {
		return fmt.Errorf("%w: ack", protocol.ErrMissingField)
	}
	if r.Ack.Code().Class() == status.ClassSuccess {
		if r.Token == nil || *r.Token == "" {
			return fmt.Errorf("%w: token", protocol.ErrMissingField)
		}
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s", protocol.ErrMissingField, field)
	}
	return nil
}

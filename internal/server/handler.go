package server

import (
	"errors"
	"time"

	"github.com/danmuck/ackwire/internal/auth"
	"github.com/danmuck/ackwire/internal/observability"
	"github.com/danmuck/ackwire/internal/protocol/message"
	"github.com/danmuck/ackwire/internal/protocol/status"
	"github.com/danmuck/ackwire/internal/session"
	"github.com/rs/zerolog"
)

const maxNotices = 64

// NoticeRecord is one accepted notice.
type NoticeRecord struct {
	Username string
	Text     string
	At       time.Time
}

// Notices returns the retained notices, oldest first.
func (s *Service) Notices() []NoticeRecord {
	s.noticesMu.Lock()
	defer s.noticesMu.Unlock()
	out := make([]NoticeRecord, len(s.notices))
	copy(out, s.notices)
	return out
}

func (s *Service) recordNotice(rec NoticeRecord) {
	s.noticesMu.Lock()
	defer s.noticesMu.Unlock()
	if len(s.notices) == maxNotices {
		s.notices = append(s.notices[:0], s.notices[1:]...)
	}
	s.notices = append(s.notices, rec)
}

// dispatch handles one envelope and encodes its reply. Errors are schema
// errors from opening the body.
func (s *Service) dispatch(log zerolog.Logger, env session.Envelope) ([]byte, error) {
	log = log.With().Str("kind", string(env.Kind)).Logger()
	switch env.Kind {
	case session.KindLogin:
		req, err := session.Open[session.Login](env)
		if err != nil {
			return nil, err
		}
		return s.reply(log, env.Kind, s.login(log, req))
	case session.KindRegister:
		req, err := session.Open[session.Register](env)
		if err != nil {
			return nil, err
		}
		return s.reply(log, env.Kind, s.register(log, req))
	case session.KindNotice:
		req, err := session.Open[session.Notice](env)
		if err != nil {
			return nil, err
		}
		return s.replyAck(log, env.Kind, s.notice(log, req))
	default:
		req, err := session.Open[session.Logout](env)
		if err != nil {
			return nil, err
		}
		return s.replyAck(log, env.Kind, s.logout(log, req))
	}
}

func (s *Service) login(log zerolog.Logger, req session.Login) session.LoginResult {
	token, err := s.store.Login(req.Username, req.Password)
	if err != nil {
		log.Info().Str("username", req.Username).Err(err).Msg("login denied")
		return session.Denied(message.NewAckMessage(status.Unauthorized, "invalid credentials"))
	}
	log.Info().Str("username", req.Username).Msg("login")
	return session.Granted(message.NewAck(status.OK), token)
}

func (s *Service) register(log zerolog.Logger, req session.Register) session.LoginResult {
	token, err := s.store.Register(auth.User{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, req.Password)
	switch {
	case err == nil:
		log.Info().Str("username", req.Username).Msg("registered")
		return session.Granted(message.NewAck(status.Created), token)
	case errors.Is(err, auth.ErrUserExists):
		return session.Denied(message.NewAckMessage(status.Conflict, "username taken"))
	case errors.Is(err, auth.ErrInvalidUser):
		return session.Denied(message.NewAckMessage(status.BadRequest, "username and password required"))
	case errors.Is(err, auth.ErrPasswordTooLong):
		return session.Denied(message.NewAckMessage(status.BadRequest, "password longer than 72 bytes"))
	default:
		log.Error().Err(err).Msg("register failed")
		return session.Denied(message.NewAck(status.InternalServerError))
	}
}

func (s *Service) notice(log zerolog.Logger, req session.Notice) message.Acknowledgement {
	user, err := s.store.Lookup(req.Token)
	if err != nil {
		return tokenRejection(err)
	}
	s.recordNotice(NoticeRecord{Username: user.Username, Text: req.Text, At: time.Now()})
	log.Info().Str("username", user.Username).Int("bytes", len(req.Text)).Msg("notice")
	return message.NewAck(status.OK)
}

func (s *Service) logout(log zerolog.Logger, req session.Logout) message.Acknowledgement {
	if err := s.store.Logout(req.Token); err != nil {
		return tokenRejection(err)
	}
	log.Info().Msg("logout")
	return message.NewAck(status.OK)
}

func tokenRejection(err error) message.Acknowledgement {
	if errors.Is(err, auth.ErrTokenExpired) {
		return message.NewAckMessage(status.Unauthorized, "token expired")
	}
	return message.NewAckMessage(status.Unauthorized, "invalid token")
}

func (s *Service) reply(log zerolog.Logger, kind session.Kind, res session.LoginResult) ([]byte, error) {
	return encodeReply(s, log, kind, res.Ack.Code(), res)
}

func (s *Service) replyAck(log zerolog.Logger, kind session.Kind, ack message.Acknowledgement) ([]byte, error) {
	return encodeReply(s, log, kind, ack.Code(), ack)
}

func encodeReply[T message.Response](s *Service, log zerolog.Logger, kind session.Kind, code status.Code, msg T) ([]byte, error) {
	observability.RecordRequest(string(kind), code.String())
	observability.SetSessionsActive(s.store.Active())
	log.Debug().Stringer("reply", msg).Msg("reply")
	return message.Marshal(msg)
}

// Package auth checks bearer tokens and keeps the user/session store behind
// the login conversation.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrUnauthorized    = errors.New("auth: unauthorized")
	ErrTokenExpired    = errors.New("auth: token expired")
	ErrUserExists      = errors.New("auth: user exists")
	ErrInvalidUser     = errors.New("auth: invalid user")
	ErrPasswordTooLong = errors.New("auth: password over 72 bytes")
)

// Validator validates an authentication token. *Store satisfies it with live
// session tokens; StaticToken with one shared operator token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one configured token. An empty Token accepts
// nothing.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>". The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

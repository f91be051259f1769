package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

// MaxExpiredTokens bounds how many expired tokens are remembered. Older ones
// are forgotten and then fail as unknown rather than expired.
const MaxExpiredTokens = 4096

// User is one registered account.
type User struct {
	Username  string
	FirstName string
	LastName  string
}

type account struct {
	user  User
	hash  []byte
	token string
}

// Store keeps users and their live session tokens. Each user holds at most
// one live token; issuing a new one expires the previous. Safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	cost     int
	random   io.Reader
	accounts map[string]*account
	live     map[string]string

	expired      map[string]struct{}
	expiredOrder []string
	maxExpired   int
}

// NewStore returns an empty store hashing passwords at cost. A zero cost
// selects bcrypt.DefaultCost.
func NewStore(cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		cost:       cost,
		random:     rand.Reader,
		accounts:   make(map[string]*account),
		live:       make(map[string]string),
		expired:    make(map[string]struct{}),
		maxExpired: MaxExpiredTokens,
	}
}

// Register creates the user and returns a fresh token for it.
func (s *Store) Register(user User, password string) (string, error) {
	acct, err := s.add(user, password)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(acct)
}

// Add creates the user without opening a session.
func (s *Store) Add(user User, password string) error {
	_, err := s.add(user, password)
	return err
}

func (s *Store) add(user User, password string) (*account, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || password == "" {
		return nil, ErrInvalidUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[user.Username]; ok {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, user.Username)
	}
	acct := &account{user: user, hash: hash}
	s.accounts[user.Username] = acct
	return acct, nil
}

// Login checks the password and returns a fresh token.
func (s *Store) Login(username, password string) (string, error) {
	s.mu.RLock()
	acct, ok := s.accounts[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok {
		return "", ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return "", ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(acct)
}

// Validate reports whether token belongs to a live session.
func (s *Store) Validate(token string) error {
	_, err := s.Lookup(token)
	return err
}

// Lookup returns the user owning token.
func (s *Store) Lookup(token string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.expired[token]; ok {
		return User{}, ErrTokenExpired
	}
	name, ok := s.live[token]
	if !ok {
		return User{}, ErrUnauthorized
	}
	return s.accounts[name].user, nil
}

// Logout expires token. Later use of it fails with ErrTokenExpired.
func (s *Store) Logout(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expired[token]; ok {
		return ErrTokenExpired
	}
	name, ok := s.live[token]
	if !ok {
		return ErrUnauthorized
	}
	s.accounts[name].token = ""
	s.expireLocked(token)
	return nil
}

// Active returns the number of live sessions.
func (s *Store) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

func (s *Store) issueLocked(acct *account) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", fmt.Errorf("auth: token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if acct.token != "" {
		s.expireLocked(acct.token)
	}
	acct.token = token
	s.live[token] = acct.user.Username
	return token, nil
}

func (s *Store) expireLocked(token string) {
	delete(s.live, token)
	s.expired[token] = struct{}{}
	s.expiredOrder = append(s.expiredOrder, token)
	for len(s.expiredOrder) > s.maxExpired {
		delete(s.expired, s.expiredOrder[0])
		s.expiredOrder = s.expiredOrder[1:]
	}
}

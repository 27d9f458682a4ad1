// Package auth tracks the signed-in user. The hosted backend issues JWT
// session tokens; this package stores them in the keyring and exposes the
// decoded identity as a signal that collections bind to.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession    = errors.New("no session")
	ErrInvalidToken = errors.New("invalid session token")
)

// User is the authenticated identity.
type User struct {
	ID        string
	Email     string
	ExpiresAt time.Time
}

// Signal is the current authentication state. Loading is true until the
// stored session has been read.
type Signal struct {
	User    *User
	Loading bool
}

// UserID returns the signed-in user's id, or "" when signed out.
func (s Signal) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Provider exposes the authentication signal.
type Provider interface {
	Current() Signal
	Subscribe(fn func(Signal)) func()
}

// Claims is the session token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken decodes a session token. With a secret the HS256 signature is
// verified; without one the token is decoded as issued. Expired tokens and
// tokens without a subject are rejected either way.
func ParseToken(token string, secret []byte, now time.Time) (*User, error) {
	claims := &Claims{}
	var err error
	if len(secret) > 0 {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(func() time.Time { return now }),
		)
		_, err = parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	u := &User{ID: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(u.ExpiresAt) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
	}
	return u, nil
}

// IssueToken signs an HS256 session token. The hosted backend issues
// tokens in production; this is used for self-hosted sqlite backends.
func IssueToken(userID, email string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// subscribers fans a signal out to registered callbacks.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Signal)
}

func (s *subscribers) add(fn func(Signal)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Signal))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) emit(sig Signal) {
	s.mu.Lock()
	fns := make([]func(Signal), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(sig)
	}
}

// StaticProvider is a Provider whose state is set directly.
type StaticProvider struct {
	mu     sync.Mutex
	signal Signal
	subs   subscribers
}

// NewStatic returns a provider that starts with the given user.
func NewStatic(u *User) *StaticProvider {
	return &StaticProvider{signal: Signal{User: u}}
}

func (p *StaticProvider) Current() Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signal
}

func (p *StaticProvider) Subscribe(fn func(Signal)) func() {
	return p.subs.add(fn)
}

// Set replaces the user and notifies subscribers.
func (p *StaticProvider) Set(u *User) {
	p.mu.Lock()
	p.signal = Signal{User: u}
	sig := p.signal
	p.mu.Unlock()
	p.subs.emit(sig)
}

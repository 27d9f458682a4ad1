package auth

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/99designs/keyring"
)

const sessionKey = "session-token"

// TokenStore persists the session token.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// SessionProvider is a Provider backed by a token in the keyring.
type SessionProvider struct {
	tokens TokenStore
	secret []byte
	now    func() time.Time

	mu     sync.Mutex
	signal Signal
	subs   subscribers
}

// NewSessionProvider returns a provider in the loading state. Call Load to
// restore a stored session.
func NewSessionProvider(tokens TokenStore, secret string) *SessionProvider {
	return &SessionProvider{
		tokens: tokens,
		secret: []byte(secret),
		now:    time.Now,
		signal: Signal{Loading: true},
	}
}

// Current returns the signal. A session whose token has expired since it
// was loaded reads as signed out.
func (p *SessionProvider) Current() Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	sig := p.signal
	if sig.User != nil && !sig.User.ExpiresAt.IsZero() && !p.now().Before(sig.User.ExpiresAt) {
		sig.User = nil
	}
	return sig
}

func (p *SessionProvider) Subscribe(fn func(Signal)) func() {
	return p.subs.add(fn)
}

// Load restores the stored session. A missing or unusable token leaves the
// provider signed out without an error.
func (p *SessionProvider) Load() error {
	token, err := p.tokens.Get(sessionKey)
	if err != nil {
		p.publish(nil)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("loading session: %w", err)
	}

	u, err := ParseToken(token, p.secret, p.now())
	if err != nil {
		log.Printf("auth: discarding stored session: %v", err)
		p.publish(nil)
		return nil
	}
	p.publish(u)
	return nil
}

// Login validates and stores a session token.
func (p *SessionProvider) Login(token string) (*User, error) {
	u, err := ParseToken(token, p.secret, p.now())
	if err != nil {
		return nil, err
	}
	if err := p.tokens.Set(sessionKey, token); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	p.publish(u)
	return u, nil
}

// Logout forgets the stored session.
func (p *SessionProvider) Logout() error {
	err := p.tokens.Delete(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing session: %w", err)
	}
	p.publish(nil)
	return nil
}

// Token returns the stored session token.
func (p *SessionProvider) Token() (string, error) {
	token, err := p.tokens.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoSession
	}
	return token, err
}

func (p *SessionProvider) publish(u *User) {
	p.mu.Lock()
	p.signal = Signal{User: u}
	sig := p.signal
	p.mu.Unlock()
	p.subs.emit(sig)
}

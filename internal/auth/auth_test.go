package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/nhle/chronicle/internal/credential"
)

var (
	secret = []byte("test-secret")
	now    = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
)

func issue(t *testing.T, userID string, ttl time.Duration, key []byte) string {
	t.Helper()
	token, err := IssueToken(userID, userID+"@example.com", key, ttl, now)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	valid := issue(t, "alice", time.Hour, secret)

	tests := []struct {
		name   string
		token  string
		secret []byte
		wantID string
	}{
		{"verified", valid, secret, "alice"},
		{"unverified", valid, nil, "alice"},
		{"wrong secret", valid, []byte("other"), ""},
		{"expired", issue(t, "bob", -time.Minute, secret), secret, ""},
		{"expired unverified", issue(t, "bob", -time.Minute, secret), nil, ""},
		{"no subject", issue(t, "", time.Hour, secret), secret, ""},
		{"garbage", "not-a-token", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseToken(tt.token, tt.secret, now)
			if tt.wantID == "" {
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("expected ErrInvalidToken, got (%+v, %v)", u, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			if u.ID != tt.wantID || u.Email != "alice@example.com" || !u.ExpiresAt.Equal(now.Add(time.Hour)) {
				t.Fatalf("user = %+v", u)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	creds := credential.NewStore(keyring.NewArrayKeyring(nil))
	p := NewSessionProvider(creds, string(secret))
	p.now = func() time.Time { return now }

	if !p.Current().Loading {
		t.Fatalf("provider should start loading")
	}

	var seen []string
	stop := p.Subscribe(func(s Signal) { seen = append(seen, s.UserID()) })
	defer stop()

	if err := p.Load(); err != nil {
		t.Fatalf("loading empty session: %v", err)
	}
	if sig := p.Current(); sig.Loading || sig.User != nil {
		t.Fatalf("signal after empty load = %+v", sig)
	}
	if _, err := p.Token(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if _, err := p.Login("bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	u, err := p.Login(issue(t, "alice", time.Hour, secret))
	if err != nil || u.ID != "alice" {
		t.Fatalf("Login = (%+v, %v)", u, err)
	}

	// A fresh provider restores the stored session.
	restored := NewSessionProvider(creds, string(secret))
	restored.now = p.now
	if err := restored.Load(); err != nil {
		t.Fatalf("restoring: %v", err)
	}
	if restored.Current().UserID() != "alice" {
		t.Fatalf("restored signal = %+v", restored.Current())
	}
	restored.now = func() time.Time { return now.Add(2 * time.Hour) }
	if restored.Current().User != nil {
		t.Fatalf("expired session still reports a user")
	}

	if err := p.Logout(); err != nil {
		t.Fatalf("logging out: %v", err)
	}
	if err := p.Logout(); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	want := []string{"", "alice", "", ""}
	if len(seen) != len(want) {
		t.Fatalf("signals = %q, want %q", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("signals = %q, want %q", seen, want)
		}
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStatic(nil)
	calls := 0
	stop := p.Subscribe(func(Signal) { calls++ })
	p.Set(&User{ID: "u"})
	stop()
	p.Set(nil)

	if calls != 1 {
		t.Fatalf("subscriber called %d times", calls)
	}
	if p.Current().User != nil {
		t.Fatalf("expected signed out")
	}
}

package auth

import (
	"sync"
	"time"
)

// TokenLifetime is the validity window applied to every issued token.
const TokenLifetime = 3600 * time.Second

// Token is a bearer token and the instant it stops being usable.
type Token struct {
	Value  string
	Expiry time.Time
}

// Valid reports whether the token may be used at now. There is no skew margin.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.Expiry)
}

// TokenState is everything a session knows about its credentials.
type TokenState struct {
	User         Token
	RefreshToken string
	Server       Token
}

// LoggedIn reports whether the state can produce a user token, now or after a refresh.
func (s TokenState) LoggedIn() bool {
	return s.User.Value != "" || s.RefreshToken != ""
}

// Locker is a keyed mutex. Entries are dropped once no goroutine holds or waits on them.
//
// The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the function that releases it.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.Lock()
	return func() {
		kl.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

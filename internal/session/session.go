// Package session stores per-user web state on top of scs: the token pair, the pending
// OAuth state value and flash messages.
package session

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/desertthunder/toolify/internal/auth"
	"github.com/desertthunder/toolify/internal/shared"
)

const (
	CookieName = "toolify_session"

	tokensKey = "tokens"
	stateKey  = "oauth_state"
	flashKey  = "flash:"
	dataKey   = "data:"

	// pruneEvery bounds how often Update sweeps the token and revocation caches.
	pruneEvery = time.Minute
)

// Flash categories.
const (
	FlashAuthorization = "authorization_failed"
	FlashAnalyze       = "analyze_error"
	FlashBackup        = "backup_error"
	FlashRestore       = "restore_error"
	FlashNotice        = "notice"
)

func init() {
	gob.Register(auth.TokenState{})
}

// Options configures [New].
type Options struct {
	Store    scs.Store // nil keeps sessions in memory
	Lifetime time.Duration
	Secure   bool
}

// Manager wraps [scs.SessionManager] with typed accessors.
type Manager struct {
	*scs.SessionManager
	locks auth.Locker

	// latest holds the most recent token state written per session token. Requests load
	// session data before they run, so a request that waited on the lock would otherwise
	// see the state from before the refresh it waited for.
	latest sync.Map
	// revoked maps session tokens discarded by Reset to the time they were discarded.
	revoked sync.Map

	now     func() time.Time
	pruneMu sync.Mutex
	pruned  time.Time
}

// New creates a session [Manager].
func New(opts Options) *Manager {
	sm := scs.New()
	if opts.Store != nil {
		sm.Store = opts.Store
	}
	if opts.Lifetime > 0 {
		sm.Lifetime = opts.Lifetime
	}
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = opts.Secure
	sm.Cookie.Persist = false
	return &Manager{SessionManager: sm, now: time.Now}
}

// Tokens returns the session's token state, zero when none is stored.
func (m *Manager) Tokens(ctx context.Context) auth.TokenState {
	st, _ := m.Get(ctx, tokensKey).(auth.TokenState)
	return st
}

// SetTokens stores the session's token state.
func (m *Manager) SetTokens(ctx context.Context, st auth.TokenState) {
	m.Put(ctx, tokensKey, st)
}

// LoggedIn reports whether the session holds user credentials.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	return m.Tokens(ctx).LoggedIn()
}

// Reset clears all session data and issues a new session token. Flashes added afterwards
// are kept. Requests still running under the old token can no longer update its tokens.
func (m *Manager) Reset(ctx context.Context) error {
	if key := m.Token(ctx); key != "" {
		unlock := m.locks.Lock(key)
		m.latest.Delete(key)
		m.revoked.Store(key, m.now())
		unlock()
	}
	if err := m.Clear(ctx); err != nil {
		return err
	}
	return m.RenewToken(ctx)
}

// Update runs fn on the session's token state and stores the result while holding the
// session's lock, so concurrent requests from one session do not refresh twice. The stored
// state is replaced even when fn fails. A session token discarded by [Manager.Reset] fails with
// [shared.ErrAuthorizationFailed] without running fn.
func (m *Manager) Update(ctx context.Context, fn func(auth.TokenState) (auth.TokenState, error)) (auth.TokenState, error) {
	key := m.Token(ctx)
	if key == "" {
		st, err := fn(m.Tokens(ctx))
		m.SetTokens(ctx, st)
		return st, err
	}

	unlock := m.locks.Lock(key)
	defer unlock()

	if _, ok := m.revoked.Load(key); ok {
		return auth.TokenState{}, fmt.Errorf("%w: session was reset", shared.ErrAuthorizationFailed)
	}

	st := m.Tokens(ctx)
	if v, ok := m.latest.Load(key); ok {
		st = fresher(st, v.(auth.TokenState))
	}
	st, err := fn(st)
	m.SetTokens(ctx, st)
	m.latest.Store(key, st)
	m.prune(m.now())
	return st, err
}

// fresher merges the newer user and server tokens of a and b.
func fresher(a, b auth.TokenState) auth.TokenState {
	if b.User.Expiry.After(a.User.Expiry) {
		a.User, a.RefreshToken = b.User, b.RefreshToken
	}
	if b.Server.Expiry.After(a.Server.Expiry) {
		a.Server = b.Server
	}
	return a
}

// prune drops cached states whose tokens have both expired and revocations older than the
// session lifetime. It does nothing if the last sweep was less than pruneEvery ago.
func (m *Manager) prune(now time.Time) {
	m.pruneMu.Lock()
	if now.Sub(m.pruned) < pruneEvery {
		m.pruneMu.Unlock()
		return
	}
	m.pruned = now
	m.pruneMu.Unlock()

	m.latest.Range(func(k, v any) bool {
		st := v.(auth.TokenState)
		if !st.User.Valid(now) && !st.Server.Valid(now) {
			m.latest.Delete(k)
		}
		return true
	})
	m.revoked.Range(func(k, v any) bool {
		if now.Sub(v.(time.Time)) > m.Lifetime {
			m.revoked.Delete(k)
		}
		return true
	})
}

// PutState remembers the OAuth state value sent to the provider.
func (m *Manager) PutState(ctx context.Context, state string) {
	m.Put(ctx, stateKey, state)
}

// PopState returns and forgets the pending OAuth state value.
func (m *Manager) PopState(ctx context.Context) string {
	return m.PopString(ctx, stateKey)
}

// Flash queues a message for the next page rendering category.
func (m *Manager) Flash(ctx context.Context, category, msg string) {
	m.Put(ctx, flashKey+category, msg)
}

// PopFlash returns and removes the queued message for category.
func (m *Manager) PopFlash(ctx context.Context, category string) string {
	return m.PopString(ctx, flashKey+category)
}

// PutData stores a request-to-request value such as a restore summary.
func (m *Manager) PutData(ctx context.Context, key string, v any) {
	m.Put(ctx, dataKey+key, v)
}

// PopData returns and removes a value stored with [Manager.PutData].
func (m *Manager) PopData(ctx context.Context, key string) any {
	return m.Pop(ctx, dataKey+key)
}

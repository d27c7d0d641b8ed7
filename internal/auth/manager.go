package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/toolify/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultAuthURL  = "https://accounts.spotify.com/authorize"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Config describes the OAuth client and identity provider endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string

	// HTTPClient is used for token endpoint calls. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	Logger     *log.Logger
	// Now is the clock used for expiry decisions. Defaults to [time.Now].
	Now func() time.Time
}

// Manager exchanges and refreshes tokens against the provider's token endpoint.
//
// Client credentials are sent with HTTP Basic auth.
type Manager struct {
	user   *oauth2.Config
	server *clientcredentials.Config
	client *http.Client
	logger *log.Logger
	now    func() time.Time
}

// NewManager creates a [Manager] from cfg.
func NewManager(cfg Config) *Manager {
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	m := &Manager{
		user: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		server: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: cfg.HTTPClient,
		logger: cfg.Logger,
		now:    cfg.Now,
	}

	if m.client == nil {
		m.client = &http.Client{Timeout: 10 * time.Second}
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(io.Discard)
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Manager) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// AuthCodeURL returns the provider consent URL. The consent dialog is always shown.
func (m *Manager) AuthCodeURL(state string) string {
	return m.user.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a fresh user token.
func (m *Manager) Exchange(ctx context.Context, code string) (TokenState, error) {
	tok, err := m.user.Exchange(m.withClient(ctx), code)
	if err != nil {
		m.logger.Warn("authorization code exchange failed", "error", err)
		return TokenState{}, fmt.Errorf("%w: code exchange: %v", shared.ErrAuthorizationFailed, err)
	}

	return TokenState{
		User:         Token{Value: tok.AccessToken, Expiry: m.now().Add(TokenLifetime)},
		RefreshToken: tok.RefreshToken,
	}, nil
}

// EnsureUserToken returns st unchanged while the user token is valid. Otherwise it redeems
// the refresh token once. A new refresh token replaces the old one only when the provider
// sends one.
//
// On failure the returned state is empty and the error wraps [shared.ErrAuthorizationFailed];
// callers should discard the whole session.
func (m *Manager) EnsureUserToken(ctx context.Context, st TokenState) (TokenState, error) {
	now := m.now()
	if st.User.Valid(now) {
		return st, nil
	}
	if st.RefreshToken == "" {
		return TokenState{}, fmt.Errorf("%w: not logged in", shared.ErrAuthorizationFailed)
	}

	src := m.user.TokenSource(m.withClient(ctx), &oauth2.Token{RefreshToken: st.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		m.logger.Warn("user token refresh failed", "error", err)
		return TokenState{}, fmt.Errorf("%w: refresh: %v", shared.ErrAuthorizationFailed, err)
	}

	st.User = Token{Value: tok.AccessToken, Expiry: now.Add(TokenLifetime)}
	if tok.RefreshToken != "" {
		st.RefreshToken = tok.RefreshToken
	}
	m.logger.Debug("refreshed user token", "expiry", st.User.Expiry)
	return st, nil
}

// EnsureServerToken is the client-credentials counterpart of [Manager.EnsureUserToken].
// The user token and refresh token are left untouched.
//
// Failures wrap [shared.ErrUpstreamUnavailable] and return st as given.
func (m *Manager) EnsureServerToken(ctx context.Context, st TokenState) (TokenState, error) {
	now := m.now()
	if st.Server.Valid(now) {
		return st, nil
	}

	tok, err := m.server.Token(m.withClient(ctx))
	if err != nil {
		m.logger.Warn("server token request failed", "error", err)
		return st, fmt.Errorf("%w: client credentials: %v", shared.ErrUpstreamUnavailable, err)
	}

	st.Server = Token{Value: tok.AccessToken, Expiry: now.Add(TokenLifetime)}
	m.logger.Debug("issued server token", "expiry", st.Server.Expiry)
	return st, nil
}

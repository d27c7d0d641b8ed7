package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/toolify/internal/auth"
	"github.com/desertthunder/toolify/internal/session"
	"github.com/desertthunder/toolify/internal/shared"
)

// AuthorizationFailedMessage is flashed whenever the login flow cannot produce a token.
const AuthorizationFailedMessage = "Authorization failed. Please login again."

// Authenticator is the part of [auth.Manager] the login flow needs.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (auth.TokenState, error)
}

// OAuthHandler handles the OAuth2 authorization code flow for browser sessions.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	auth     Authenticator
	sessions *session.Manager
	logger   *log.Logger
}

// NewOAuthHandler creates an OAuth handler storing its results in sessions.
func NewOAuthHandler(a Authenticator, sessions *session.Manager, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{auth: a, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback"}
}

// ServeHTTP dispatches to the login or callback step.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("generate oauth state", "error", err)
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	h.sessions.PutState(r.Context(), state)
	http.Redirect(w, r, h.auth.AuthCodeURL(state), http.StatusFound)
}

// callback validates state before anything else. The pending state is consumed on every
// attempt so a callback URL cannot be replayed.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	want := h.sessions.PopState(ctx)

	if want == "" || q.Get("state") != want {
		h.logger.Warn("oauth state mismatch")
		h.fail(w, r)
		return
	}
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Warn("authorization denied", "error", errParam)
		h.fail(w, r)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.fail(w, r)
		return
	}

	st, err := h.auth.Exchange(ctx, code)
	if err != nil {
		h.fail(w, r)
		return
	}

	if err := h.sessions.RenewToken(ctx); err != nil {
		h.logger.Error("renew session token", "error", err)
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	h.sessions.SetTokens(ctx, st)
	h.logger.Info("user logged in", "request_id", RequestIDFrom(ctx))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.sessions.Reset(ctx); err != nil {
		h.logger.Error("reset session", "error", err)
	}
	h.sessions.Flash(ctx, session.FlashAuthorization, AuthorizationFailedMessage)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

package web

import (
	"context"
	"encoding/gob"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/justinas/alice"

	"github.com/desertthunder/toolify/internal/auth"
	"github.com/desertthunder/toolify/internal/server"
	"github.com/desertthunder/toolify/internal/session"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/tasks"
)

func init() {
	gob.Register(RestoreSummary{})
}

// TokenSource keeps session tokens valid. [auth.Manager] implements it.
type TokenSource interface {
	EnsureUserToken(ctx context.Context, st auth.TokenState) (auth.TokenState, error)
	EnsureServerToken(ctx context.Context, st auth.TokenState) (auth.TokenState, error)
}

// Options configures [New].
type Options struct {
	Engine   *tasks.PlaylistEngine
	Auth     server.Authenticator
	Tokens   TokenSource
	Sessions *session.Manager
	Logger   *log.Logger
	// Now is the clock used for file names and default playlist names. Defaults to [time.Now].
	Now func() time.Time
}

// App holds the web handlers and their dependencies.
type App struct {
	engine   *tasks.PlaylistEngine
	auth     server.Authenticator
	tokens   TokenSource
	sessions *session.Manager
	pages    *Pages
	logger   *log.Logger
	now      func() time.Time
}

// New creates an [App]. Templates are parsed here.
func New(opts Options) (*App, error) {
	pages, err := NewPages()
	if err != nil {
		return nil, err
	}

	app := &App{
		engine:   opts.Engine,
		auth:     opts.Auth,
		tokens:   opts.Tokens,
		sessions: opts.Sessions,
		pages:    pages,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if app.logger == nil {
		app.logger = shared.NewLogger(io.Discard)
	}
	app.logger = shared.WithLogger(app.logger, "component", "web")
	if app.now == nil {
		app.now = time.Now
	}
	return app, nil
}

// Routes returns the application handler with the standard middleware chain applied.
func (a *App) Routes() http.Handler {
	r := server.NewBasicRouter()
	r.Handle(http.MethodGet, "/static/", a.pages.Static())

	r.Use(a.sessions.LoadAndSave)
	r.Handler(server.NewOAuthHandler(a.auth, a.sessions, a.logger))
	r.HandleFunc(http.MethodGet, "/{$}", a.index)
	r.HandleFunc(http.MethodGet, "/backup", a.backup)
	r.HandleFunc(http.MethodGet, "/download", a.download)
	r.HandleFunc(http.MethodGet, "/analyze-playlist", a.analyzeForm)
	r.HandleFunc(http.MethodGet, "/analyzed", a.analyzed)
	r.HandleFunc(http.MethodGet, "/restore", a.restoreForm)
	r.HandleFunc(http.MethodPost, "/restore", a.restore)
	r.HandleFunc(http.MethodGet, "/logout", a.logout)
	r.HandleFunc(http.MethodGet, "/error", a.errorPage)
	r.HandleFunc(http.MethodGet, "/not-found", a.notFound)
	r.HandleFunc("", "/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/not-found", http.StatusSeeOther)
	})

	standard := alice.New(
		alice.Constructor(server.RecoverPanic(a.logger)),
		server.RequestID,
		alice.Constructor(server.LogRequests(a.logger)),
		server.CommonHeaders,
	)
	return standard.Then(r)
}

// templateData is the value every page renders.
type templateData struct {
	CurrentYear int
	LoggedIn    bool
	Flash       string
	Heading     string

	Backup    *tasks.BackupPage
	Playlists []playlistOption
	Report    *tasks.AnalysisReport
	Restore   *RestoreSummary

	DefaultName string
	MaxTracks   int
}

func (a *App) newTemplateData(r *http.Request) templateData {
	return templateData{
		CurrentYear: a.now().Year(),
		LoggedIn:    a.sessions.LoggedIn(r.Context()),
	}
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, page string, data templateData) {
	if err := a.pages.Render(w, status, page, data); err != nil {
		a.serverError(w, r, err)
	}
}

// serverError logs err and sends a bare 500. It is only used when rendering itself fails.
func (a *App) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error(err.Error(), "method", r.Method, "uri", r.URL.RequestURI(), "request_id", server.RequestIDFrom(r.Context()))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// fail maps err to a response. form and category name the page and flash slot that
// validation and access errors return to.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, form, category string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, shared.ErrAuthorizationFailed):
		a.logger.Warn("authorization failed", "error", err, "request_id", server.RequestIDFrom(ctx))
		if rerr := a.sessions.Reset(ctx); rerr != nil {
			a.logger.Error("reset session", "error", rerr)
		}
		a.sessions.Flash(ctx, session.FlashAuthorization, server.AuthorizationFailedMessage)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, shared.ErrValidationFailed), errors.Is(err, shared.ErrAccessDenied):
		a.sessions.Flash(ctx, category, shared.UserMessage(err, "Something went wrong."))
		http.Redirect(w, r, form, http.StatusSeeOther)
	case errors.Is(err, shared.ErrPageNotFound):
		http.Redirect(w, r, "/not-found", http.StatusSeeOther)
	case errors.Is(err, context.Canceled):
		a.logger.Debug("request cancelled", "uri", r.URL.RequestURI())
	default:
		a.logger.Error("request failed", "error", err, "uri", r.URL.RequestURI(), "request_id", server.RequestIDFrom(ctx))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
	}
}

// userToken returns a valid user token, refreshing it when needed.
func (a *App) userToken(ctx context.Context) (string, error) {
	st, err := a.sessions.Update(ctx, func(st auth.TokenState) (auth.TokenState, error) {
		return a.tokens.EnsureUserToken(ctx, st)
	})
	if err != nil {
		return "", err
	}
	return st.User.Value, nil
}

// serverToken returns a valid client-credentials token stored in the session.
func (a *App) serverToken(ctx context.Context) (string, error) {
	st, err := a.sessions.Update(ctx, func(st auth.TokenState) (auth.TokenState, error) {
		return a.tokens.EnsureServerToken(ctx, st)
	})
	if err != nil {
		return "", err
	}
	return st.Server.Value, nil
}

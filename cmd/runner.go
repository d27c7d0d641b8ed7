package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/toolify/internal/auth"
	"github.com/desertthunder/toolify/internal/services"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ServerTokens issues client-credentials tokens. [auth.Manager] implements it.
type ServerTokens interface {
	EnsureServerToken(ctx context.Context, st auth.TokenState) (auth.TokenState, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The catalog client and token manager are built from the loaded config on first use unless
// they were injected.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	catalog    services.Catalog
	tokens     ServerTokens
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Catalog    services.Catalog
	Tokens     ServerTokens
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		catalog:    opts.Catalog,
		tokens:     opts.Tokens,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, analyzeCommand, exportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the config file named by --config when it exists, applies dotenv and
// environment overrides, then rebuilds the logger from the log section.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return ctx, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ctx, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := config.LoadEnv(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	logger, err := shared.ConfigureLogger(config.Log)
	if err != nil {
		return ctx, err
	}
	r.logger = logger
	r.config = config
	return ctx, nil
}

func (r *Runner) client() services.Catalog {
	if r.catalog == nil {
		r.catalog = services.NewSpotifyClient(services.SpotifyClientOpts{
			BaseURL:    r.config.API.BaseURL,
			Market:     r.config.API.Market,
			Timeout:    r.config.API.Timeout(),
			RateLimit:  r.config.API.RateLimit,
			HTTPClient: r.httpClient,
			Logger:     shared.WithLogger(r.logger, "component", "catalog"),
		})
	}
	return r.catalog
}

func (r *Runner) authManager() *auth.Manager {
	sp := r.config.Credentials.Spotify
	return auth.NewManager(auth.Config{
		ClientID:     sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURL:  sp.RedirectURI,
		Scopes:       sp.Scopes,
		AuthURL:      r.config.API.AuthURL,
		TokenURL:     r.config.API.TokenURL,
		HTTPClient:   r.httpClient,
		Logger:       shared.WithLogger(r.logger, "component", "auth"),
	})
}

func (r *Runner) serverTokens() ServerTokens {
	if r.tokens == nil {
		r.tokens = r.authManager()
	}
	return r.tokens
}

func (r *Runner) engine() *tasks.PlaylistEngine {
	return tasks.NewPlaylistEngine(r.client(), r.logger)
}

// serverToken issues a client-credentials token for commands that read public playlists.
func (r *Runner) serverToken(ctx context.Context) (string, error) {
	if r.tokens == nil {
		if err := r.config.Validate(); err != nil {
			return "", err
		}
	}
	st, err := r.serverTokens().EnsureServerToken(ctx, auth.TokenState{})
	if err != nil {
		return "", err
	}
	return st.Server.Value, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

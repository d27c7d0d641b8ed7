package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/toolify/internal/auth"
	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/tasks"
	tu "github.com/desertthunder/toolify/internal/testing"
	"github.com/urfave/cli/v3"
)

const playlistID = "37i9dQZF1DXcBWIGoYBM5M"

type fakeTokens struct {
	err   error
	calls int
}

func (f *fakeTokens) EnsureServerToken(ctx context.Context, st auth.TokenState) (auth.TokenState, error) {
	f.calls++
	if f.err != nil {
		return st, f.err
	}
	st.Server = auth.Token{Value: "server", Expiry: time.Now().Add(time.Hour)}
	return st, nil
}

func analyzableCatalog(n int) *tu.MockCatalog {
	var p models.Playlist
	p.ID = playlistID
	p.Name = "Road Trip"
	p.Tracks.Total = n
	return &tu.MockCatalog{
		PlaylistMeta:  map[string]models.Playlist{playlistID: p},
		PlaylistItems: map[string][]models.PlaylistItem{playlistID: tu.NumberedItems(n)},
	}
}

func testRunner(cat *tu.MockCatalog, tokens ServerTokens) (*Runner, *bytes.Buffer) {
	output := &bytes.Buffer{}
	return NewRunner(RunnerOpts{
		Logger:  shared.NewLogger(io.Discard),
		Output:  output,
		Catalog: cat,
		Tokens:  tokens,
	}), output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "toolify", Flags: rootFlags(), Commands: r.register()}
	return app.Run(context.Background(), append([]string{"toolify"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			cat := &tu.MockCatalog{}
			tokens := &fakeTokens{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Catalog:    cat,
				Tokens:     tokens,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.client() != cat {
				t.Error("expected injected catalog to be used")
			}
			if runner.serverTokens() != tokens {
				t.Error("expected injected token source to be used")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("builds catalog from config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.client() == nil {
				t.Fatal("expected a catalog client")
			}
			if runner.client() != runner.client() {
				t.Error("expected the client to be built once")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)

			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("%d tracks\n", 3); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "3 tracks\n" {
			t.Errorf("unexpected output %q", output.String())
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("x"); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 8080\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")

	runner, _ := testRunner(&tu.MockCatalog{}, &fakeTokens{})
	var seen *shared.Config
	app := &cli.Command{
		Name:   "toolify",
		Flags:  rootFlags(),
		Before: runner.loadConfig,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			seen = runner.config
			return nil
		},
	}

	err := app.Run(context.Background(), []string{"toolify", "--config", path, "--env-file", filepath.Join(dir, "missing.env")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if seen == nil {
		t.Fatal("action did not run")
	}
	if seen.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", seen.Server.Port)
	}
	if seen.API.Market != "US" {
		t.Errorf("expected defaults under the file, market = %q", seen.API.Market)
	}
	if seen.Credentials.Spotify.ClientID != "env-id" {
		t.Errorf("client id = %q, want env-id", seen.Credentials.Spotify.ClientID)
	}
	if runner.configPath != path {
		t.Errorf("configPath = %q", runner.configPath)
	}
}

func TestAnalyze(t *testing.T) {
	link := "https://open.spotify.com/playlist/" + playlistID

	t.Run("styled summary", func(t *testing.T) {
		runner, output := testRunner(analyzableCatalog(12), &fakeTokens{})

		if err := run(runner, "analyze", link); err != nil {
			t.Fatalf("analyze error = %v", err)
		}
		for _, want := range []string{"Road Trip", "Tracks analyzed: 12", "2000s", "Artist artist", "50/100"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("output missing %q:\n%s", want, output.String())
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		runner, output := testRunner(analyzableCatalog(12), &fakeTokens{})

		if err := run(runner, "analyze", "--json", link); err != nil {
			t.Fatalf("analyze error = %v", err)
		}
		var report tasks.AnalysisReport
		if err := json.Unmarshal(output.Bytes(), &report); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, output.String())
		}
		if report.Result.Tracks != 12 || report.Result.MeanPopularity != 50 {
			t.Errorf("unexpected result %+v", report.Result)
		}
		if len(report.Result.TopDecades) != 1 || report.Result.TopDecades[0].Key != "2000s" {
			t.Errorf("unexpected decades %+v", report.Result.TopDecades)
		}
	})

	t.Run("missing link", func(t *testing.T) {
		runner, _ := testRunner(&tu.MockCatalog{}, &fakeTokens{})
		if err := run(runner, "analyze"); !errors.Is(err, shared.ErrValidationFailed) {
			t.Errorf("expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		runner, _ := testRunner(analyzableCatalog(3), &fakeTokens{})
		err := run(runner, "analyze", link)
		if !errors.Is(err, shared.ErrValidationFailed) {
			t.Errorf("expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("token failure", func(t *testing.T) {
		tokens := &fakeTokens{err: shared.ErrUpstreamUnavailable}
		runner, _ := testRunner(analyzableCatalog(12), tokens)
		if err := run(runner, "analyze", link); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})
}

func TestExport(t *testing.T) {
	link := "spotify:playlist:" + playlistID

	t.Run("to file", func(t *testing.T) {
		runner, output := testRunner(analyzableCatalog(4), &fakeTokens{})
		path := filepath.Join(t.TempDir(), "out.csv")

		if err := run(runner, "export", "--out", path, link); err != nil {
			t.Fatalf("export error = %v", err)
		}
		tu.AssertFileExists(t, path)

		lines := strings.Split(strings.TrimSpace(tu.MustReadFile(t, path)), "\n")
		if len(lines) != 5 || !strings.HasPrefix(lines[0], "Name,Added at,url,spotify_id") {
			t.Errorf("unexpected file contents: %v", lines)
		}
		if !strings.Contains(output.String(), "Exported 4 tracks") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("to stdout", func(t *testing.T) {
		runner, output := testRunner(analyzableCatalog(2), &fakeTokens{})

		if err := run(runner, "export", "--out=-", link); err != nil {
			t.Fatalf("export error = %v", err)
		}
		if n := strings.Count(output.String(), "\n"); n != 3 {
			t.Errorf("expected header and 2 rows, got %d lines", n)
		}
	})

	t.Run("invalid link", func(t *testing.T) {
		tokens := &fakeTokens{}
		runner, _ := testRunner(&tu.MockCatalog{}, tokens)
		if err := run(runner, "export", "https://example.com"); !errors.Is(err, shared.ErrValidationFailed) {
			t.Errorf("expected ErrValidationFailed, got %v", err)
		}
		if tokens.calls != 0 {
			t.Error("token requested for an invalid link")
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		runner, _ := testRunner(&tu.MockCatalog{}, &fakeTokens{})
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(runner, "setup", "config", path); err != nil {
			t.Fatalf("setup config error = %v", err)
		}
		tu.AssertFileExists(t, path)
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("written config does not load: %v", err)
		}
		if err := run(runner, "setup", "config", path); err == nil {
			t.Error("expected error when the file exists")
		}
	})

	t.Run("database and rollback", func(t *testing.T) {
		runner, _ := testRunner(&tu.MockCatalog{}, &fakeTokens{})
		runner.config.Database.Path = filepath.Join(t.TempDir(), "toolify.db")

		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("setup database error = %v", err)
		}
		tu.AssertFileExists(t, runner.config.Database.Path)
		if err := run(runner, "setup", "rollback"); err != nil {
			t.Errorf("setup rollback error = %v", err)
		}
	})
}

package main

import (
	"context"
	"os"

	"github.com/desertthunder/toolify/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "toolify",
		Usage:    "Back up, restore and analyze Spotify playlists",
		Version:  "0.1.0",
		Flags:    rootFlags(),
		Before:   runner.loadConfig,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.logger.Fatalf("application error: %v", err)
	}
}

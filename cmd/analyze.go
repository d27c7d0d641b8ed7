package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/toolify/internal/formatter"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/tasks"
	"github.com/desertthunder/toolify/internal/ui"
	"github.com/urfave/cli/v3"
)

// Analyze prints statistics for a public playlist using a client-credentials token.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("playlist")
	if link == "" {
		return fmt.Errorf("%w: a playlist link is required", shared.ErrValidationFailed)
	}
	useJSON := cmd.Bool("json")

	token, err := r.serverToken(ctx)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !useJSON {
				r.writePlain("%s\n", ui.Styles.Help(update.Message))
			}
		}
	}()

	report, err := r.engine().AnalyzePlaylist(ctx, token, link, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}
	if useJSON {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}
	return r.writeReport(report)
}

func (r *Runner) writeReport(report *tasks.AnalysisReport) error {
	s := ui.Styles
	res := report.Result

	lines := []string{
		s.Title(report.Playlist.Name),
		fmt.Sprintf("Tracks analyzed: %d", res.Tracks),
		fmt.Sprintf("Popularity:      %s %d/100", s.Bar(res.MeanPopularity, 100, 20), res.MeanPopularity),
		"",
		s.OK("Top decades"),
	}
	for i, d := range res.TopDecades {
		lines = append(lines, fmt.Sprintf("  %d. %-6s %s %d", i+1, d.Key, s.Bar(d.Count, res.Tracks, 20), d.Count))
	}
	if len(res.TopDecades) == 0 {
		lines = append(lines, s.Warn("  no release dates"))
	}

	lines = append(lines, "", s.OK("Top artists"))
	for i, a := range report.Artists {
		name := a.Artist.Name
		if name == "" {
			name = a.Artist.ID
		}
		lines = append(lines, fmt.Sprintf("  %d. %s %s", i+1, name, s.Help(fmt.Sprintf("(%d tracks)", a.Count))))
	}

	return r.writePlain("%s\n", s.Box(lines...))
}

// Export writes every track of a public playlist to CSV.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("playlist")
	id, ok := shared.ExtractPlaylistID(link)
	if !ok {
		return shared.NewUserError(shared.ErrValidationFailed, "Invalid Spotify Playlist URL")
	}

	token, err := r.serverToken(ctx)
	if err != nil {
		return err
	}
	items, err := r.engine().ExportTracks(ctx, token, id)
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "" {
		out = formatter.ExportFilename(time.Now())
	}
	if out == "-" {
		return formatter.WriteCSV(r.output, items)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := formatter.WriteCSV(f, items); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}

	r.logger.Info("exported playlist", "playlist", id, "tracks", len(items), "path", out)
	return r.writePlain("%s Exported %d tracks to %s\n", ui.Styles.OK("✓"), len(items), out)
}

package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/services"
	"github.com/desertthunder/toolify/internal/shared"
)

// RestoreOptions describes the playlist to create.
type RestoreOptions struct {
	Name        string
	Description string
	Public      bool
	URIs        []string
}

// RestoreResult reports how far a restore got. It is returned alongside errors too, since
// batches added before a failure are not rolled back.
type RestoreResult struct {
	Playlist *models.Playlist
	Added    int
	Batches  int
}

// DefaultRestoreName is the playlist name used when none is given.
func DefaultRestoreName(now time.Time) string {
	return "Restored " + now.Format(time.DateOnly)
}

// Restore creates a playlist for the token's user and fills it with opts.URIs in sequential
// batches of [services.MaxAddTracks].
func (e *PlaylistEngine) Restore(ctx context.Context, token string, opts RestoreOptions, progress chan<- ProgressUpdate) (*RestoreResult, error) {
	if len(opts.URIs) == 0 {
		return nil, shared.NewUserError(shared.ErrValidationFailed, "There are no tracks to restore.")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = DefaultRestoreName(time.Now())
	}

	sendProgress(progress, fetchProfileUpdate())
	user, err := e.catalog.CurrentUser(ctx, token)
	if err != nil {
		return nil, userCallError("current user", err)
	}

	pl, err := e.catalog.CreatePlaylist(ctx, token, user.ID, models.CreatePlaylist{
		Name:        name,
		Description: opts.Description,
		Public:      opts.Public,
	})
	if err != nil {
		return nil, userCallError("create playlist", err)
	}
	sendProgress(progress, createPlaylistUpdate(pl))

	result := &RestoreResult{Playlist: pl}
	batches := lo.Chunk(opts.URIs, services.MaxAddTracks)
	for i, batch := range batches {
		if _, err := e.catalog.AddTracks(ctx, token, pl.ID, batch); err != nil {
			e.logger.Warn("restore stopped", "playlist", pl.ID, "added", result.Added, "total", len(opts.URIs), "error", err)
			return result, userCallError(fmt.Sprintf("add batch %d of %d", i+1, len(batches)), err)
		}
		result.Added += len(batch)
		result.Batches++
		sendProgress(progress, addTracksUpdate(i+1, len(batches), result.Added, len(opts.URIs)))
	}

	e.logger.Info("restored playlist", "playlist", pl.ID, "tracks", result.Added, "batches", result.Batches)
	return result, nil
}

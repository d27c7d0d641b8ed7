package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/services"
	"github.com/desertthunder/toolify/internal/shared"
)

const (
	// PerPage is the number of playlists on one backup page.
	PerPage = 50
	// SavedTracksID selects the saved-tracks library in [PlaylistEngine.ExportTracks].
	SavedTracksID = "saved"
)

// PlaylistEngine runs playlist operations against a [services.Catalog].
type PlaylistEngine struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine. A nil logger discards output.
func NewPlaylistEngine(catalog services.Catalog, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &PlaylistEngine{catalog: catalog, logger: shared.WithLogger(logger, "component", "tasks")}
}

// BackupPage is one page of the backup view.
type BackupPage struct {
	Playlists  []models.SimplePlaylist
	Page       int
	TotalPages int
	Total      int

	// Saved-tracks count, only fetched for the first page.
	SavedCount int
	ShowSaved  bool
}

// HasPrev reports whether a previous page exists.
func (b *BackupPage) HasPrev() bool { return b.Page > 1 }

// HasNext reports whether a following page exists.
func (b *BackupPage) HasNext() bool { return b.Page < b.TotalPages }

// BrowsePlaylists returns page (1-based) of the user's playlists. Pages beyond the last one
// are [shared.ErrPageNotFound]. An empty library still has one page.
func (e *PlaylistEngine) BrowsePlaylists(ctx context.Context, token string, page int) (*BackupPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", shared.ErrPageNotFound, page)
	}

	p, err := e.catalog.UserPlaylists(ctx, token, PerPage, (page-1)*PerPage)
	if err != nil {
		return nil, userCallError("list playlists", err)
	}

	totalPages := max(1, (p.Total+PerPage-1)/PerPage)
	if page > totalPages {
		return nil, fmt.Errorf("%w: page %d of %d", shared.ErrPageNotFound, page, totalPages)
	}

	result := &BackupPage{Playlists: p.Items, Page: page, TotalPages: totalPages, Total: p.Total}
	if page == 1 {
		saved, err := e.catalog.SavedTracks(ctx, token, 1, 0)
		if err != nil {
			return nil, userCallError("count saved tracks", err)
		}
		result.SavedCount = saved.Total
		result.ShowSaved = true
	}
	return result, nil
}

// ListPlaylists returns every playlist of the token's user.
func (e *PlaylistEngine) ListPlaylists(ctx context.Context, token string) ([]models.SimplePlaylist, error) {
	playlists, err := e.catalog.AllUserPlaylists(ctx, token)
	if err != nil {
		return nil, userCallError("list playlists", err)
	}
	return playlists, nil
}

// ExportTracks aggregates every item of playlistID, or of the saved library for
// [SavedTracksID].
func (e *PlaylistEngine) ExportTracks(ctx context.Context, token, playlistID string) ([]models.PlaylistItem, error) {
	if playlistID == "" {
		return nil, shared.NewUserError(shared.ErrValidationFailed, "No playlist selected.")
	}

	var (
		items []models.PlaylistItem
		err   error
	)
	if playlistID == SavedTracksID {
		items, err = e.catalog.AllSavedTracks(ctx, token)
	} else {
		items, err = e.catalog.AllPlaylistTracks(ctx, token, playlistID)
	}
	if err != nil {
		return nil, userCallError("export "+playlistID, err)
	}

	e.logger.Info("exported tracks", "playlist", playlistID, "tracks", len(items))
	return items, nil
}

// userCallError converts a catalog failure on a user-token call.
func userCallError(op string, err error) error {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return fmt.Errorf("%s: %w: %v", op, shared.ErrAuthorizationFailed, err)
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("%s: %w", op, shared.NewUserError(shared.ErrAccessDenied, "Unable to access Playlist"))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, shared.ErrUpstreamUnavailable, err)
	}
}

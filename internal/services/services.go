package services

import (
	"context"

	"github.com/desertthunder/toolify/internal/models"
)

// Catalog is the set of catalog operations the task layer depends on.
//
// [SpotifyClient] is the production implementation.
type Catalog interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	UserPlaylists(ctx context.Context, token string, limit, offset int) (*models.Page[models.SimplePlaylist], error)
	SavedTracks(ctx context.Context, token string, limit, offset int) (*models.Page[models.SavedTrack], error)
	PlaylistTracks(ctx context.Context, token, playlistID string, limit, offset int) (*models.Page[models.PlaylistItem], error)
	Playlist(ctx context.Context, token, playlistID string) (*models.Playlist, error)
	Artists(ctx context.Context, token string, ids []string) ([]models.Artist, error)
	CreatePlaylist(ctx context.Context, token, userID string, req models.CreatePlaylist) (*models.Playlist, error)
	AddTracks(ctx context.Context, token, playlistID string, uris []string) (string, error)

	// Aggregating variants follow next links until the last page.
	AllUserPlaylists(ctx context.Context, token string) ([]models.SimplePlaylist, error)
	AllSavedTracks(ctx context.Context, token string) ([]models.SavedTrack, error)
	AllPlaylistTracks(ctx context.Context, token, playlistID string) ([]models.PlaylistItem, error)
}

// PageFetcher retrieves the page behind a next URL.
type PageFetcher[T any] func(ctx context.Context, next string) (*models.Page[T], error)

// Collect concatenates the items of first and every page reachable through next links, in
// fetch order. Any failure discards everything gathered so far.
func Collect[T any](ctx context.Context, first *models.Page[T], fetch PageFetcher[T]) ([]T, error) {
	if first == nil {
		return nil, nil
	}

	items := append([]T(nil), first.Items...)
	next := first.Next
	for next != nil && *next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, *next)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		next = page.Next
	}
	return items, nil
}

package tasks

import (
	"fmt"

	"github.com/desertthunder/toolify/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	FetchTracks
	FetchArtists
	FetchProfile
	CreatePlaylist
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case FetchArtists:
		return "fetch_artists"
	case FetchProfile:
		return "fetch_profile"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

// sendProgress delivers update unless progress is nil or full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchPlaylistUpdate(id string) ProgressUpdate {
	return ProgressUpdate{Phase: FetchPlaylist, Step: 1, Total: 1, Message: fmt.Sprintf("Fetching playlist %s...", id)}
}

func foundPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    0,
		Total:   pl.Tracks.Total,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", pl.Name, pl.Tracks.Total),
		Data:    pl,
	}
}

func fetchedTracksUpdate(n int) ProgressUpdate {
	return ProgressUpdate{Phase: FetchTracks, Step: n, Total: n, Message: fmt.Sprintf("Fetched %d tracks", n)}
}

func fetchArtistsUpdate(n int) ProgressUpdate {
	return ProgressUpdate{Phase: FetchArtists, Step: 1, Total: 1, Message: fmt.Sprintf("Looking up top %d artists...", n)}
}

func fetchProfileUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchProfile, Step: 1, Total: 1, Message: "Fetching user profile..."}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func addTracksUpdate(batch, batches, added, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    batch,
		Total:   batches,
		Message: fmt.Sprintf("[%d/%d] Added %d of %d tracks", batch, batches, added, total),
	}
}

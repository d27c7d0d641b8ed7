package models

// Image is an artwork resource attached to albums, artists and playlists.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ExternalURLs holds public web links for a resource.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// ExternalIDs holds industry identifiers for a track.
type ExternalIDs struct {
	ISRC string `json:"isrc"`
}

// SimpleArtist is the artist reference embedded in tracks and albums.
type SimpleArtist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Artist is a full artist object.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Images       []Image      `json:"images"`
	Popularity   int          `json:"popularity"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Album is the album reference embedded in tracks.
type Album struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ReleaseDate  string       `json:"release_date"`
	Images       []Image      `json:"images"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Track is a catalog track. Popularity is nil when the API omits it or sends null.
type Track struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Artists      []SimpleArtist `json:"artists"`
	Album        Album          `json:"album"`
	DurationMS   int            `json:"duration_ms"`
	Explicit     bool           `json:"explicit"`
	ExternalIDs  ExternalIDs    `json:"external_ids"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
	Popularity   *int           `json:"popularity"`
	URI          string         `json:"uri"`
}

// ArtistNames returns the names of the track's artists in credit order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// PlaylistItem is a track within a playlist.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// SavedTrack is a track in the user's library. It has the same shape as [PlaylistItem].
type SavedTrack = PlaylistItem

// Owner identifies a playlist owner.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// TrackCount is the reduced tracks object on playlist listings and metadata.
type TrackCount struct {
	Total int `json:"total"`
}

// SimplePlaylist is a playlist as it appears in listings.
type SimplePlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Owner        Owner        `json:"owner"`
	Public       bool         `json:"public"`
	Tracks       TrackCount   `json:"tracks"`
	Images       []Image      `json:"images"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// Playlist is playlist metadata. Tracks carries only the total; items are paged separately.
type Playlist struct {
	SimplePlaylist
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
}

// User is the current user's profile.
type User struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Email       string       `json:"email"`
	Country     string       `json:"country"`
	Product     string       `json:"product"`
	ExternalURL ExternalURLs `json:"external_urls"`
	Images      []Image      `json:"images"`
}

// Page is one batch of a cursor-paginated response. Next is nil on the last page.
type Page[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// FirstImage returns the URL of the first image, or "" when there is none.
func FirstImage(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// CreatePlaylist is the body of a create-playlist request.
type CreatePlaylist struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`
}

// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/toolify/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// WriteJSON encodes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteAPIError writes a catalog-style error document.
func WriteAPIError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": msg}})
}

// Pop returns a pointer to a popularity value.
func Pop(n int) *int {
	return &n
}

// TrackID builds a deterministic 22 character base62 id from n.
func TrackID(n int) string {
	return fmt.Sprintf("%022d", n)
}

// NewTrack builds a track with one or more credited artists.
func NewTrack(id, name, releaseDate string, popularity *int, artistIDs ...string) models.Track {
	artists := make([]models.SimpleArtist, 0, len(artistIDs))
	for _, a := range artistIDs {
		artists = append(artists, models.SimpleArtist{ID: a, Name: "Artist " + a})
	}
	return models.Track{
		ID:           id,
		Name:         name,
		Artists:      artists,
		Album:        models.Album{Name: name + " (Album)", ReleaseDate: releaseDate},
		DurationMS:   180000,
		ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/track/" + id},
		Popularity:   popularity,
		URI:          "spotify:track:" + id,
	}
}

// Items wraps tracks as playlist items.
func Items(tracks ...models.Track) []models.PlaylistItem {
	items := make([]models.PlaylistItem, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, models.PlaylistItem{AddedAt: "2024-01-02T03:04:05Z", Track: t})
	}
	return items
}

// NumberedItems returns n playlist items with ids from [TrackID].
func NumberedItems(n int) []models.PlaylistItem {
	tracks := make([]models.Track, 0, n)
	for i := range n {
		tracks = append(tracks, NewTrack(TrackID(i), fmt.Sprintf("Track %d", i), "2001-01-01", Pop(50), "artist"))
	}
	return Items(tracks...)
}

// CreatedPlaylistID is the id [MockCatalog] assigns to created playlists.
const CreatedPlaylistID = "7createdPlaylist000001"

// MockCatalog is an in-memory catalog for task and handler tests.
//
// Functions left nil fall back to the static fields. Every call is recorded.
type MockCatalog struct {
	mu sync.Mutex

	User          models.User
	Playlists     []models.SimplePlaylist
	Saved         []models.SavedTrack
	PlaylistMeta  map[string]models.Playlist
	PlaylistItems map[string][]models.PlaylistItem
	ArtistsByID   map[string]models.Artist

	PlaylistErr  error
	TracksErr    error
	AddTracksErr func(call int) error

	Calls     []string
	AddedURIs [][]string
	Created   []string
}

func (m *MockCatalog) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockCatalog) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	m.record("CurrentUser")
	u := m.User
	return &u, nil
}

func (m *MockCatalog) UserPlaylists(ctx context.Context, token string, limit, offset int) (*models.Page[models.SimplePlaylist], error) {
	m.record(fmt.Sprintf("UserPlaylists limit=%d offset=%d", limit, offset))
	return slicePage(m.Playlists, limit, offset), nil
}

func (m *MockCatalog) SavedTracks(ctx context.Context, token string, limit, offset int) (*models.Page[models.SavedTrack], error) {
	m.record(fmt.Sprintf("SavedTracks limit=%d offset=%d", limit, offset))
	return slicePage(m.Saved, limit, offset), nil
}

func (m *MockCatalog) PlaylistTracks(ctx context.Context, token, playlistID string, limit, offset int) (*models.Page[models.PlaylistItem], error) {
	m.record("PlaylistTracks " + playlistID)
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return slicePage(m.PlaylistItems[playlistID], limit, offset), nil
}

func (m *MockCatalog) Playlist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	m.record("Playlist " + playlistID)
	if m.PlaylistErr != nil {
		return nil, m.PlaylistErr
	}
	p, ok := m.PlaylistMeta[playlistID]
	if !ok {
		return nil, errors.New("mock: unknown playlist " + playlistID)
	}
	return &p, nil
}

func (m *MockCatalog) Artists(ctx context.Context, token string, ids []string) ([]models.Artist, error) {
	m.record(fmt.Sprintf("Artists %d", len(ids)))
	artists := make([]models.Artist, 0, len(ids))
	for _, id := range ids {
		a, ok := m.ArtistsByID[id]
		if !ok {
			a = models.Artist{ID: id, Name: "Artist " + id}
		}
		artists = append(artists, a)
	}
	return artists, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, token, userID string, req models.CreatePlaylist) (*models.Playlist, error) {
	m.record("CreatePlaylist " + userID)
	m.mu.Lock()
	m.Created = append(m.Created, req.Name)
	m.mu.Unlock()

	var p models.Playlist
	p.ID = CreatedPlaylistID
	p.Name = req.Name
	p.Public = req.Public
	p.ExternalURLs.Spotify = "https://open.spotify.com/playlist/" + p.ID
	return &p, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, token, playlistID string, uris []string) (string, error) {
	m.mu.Lock()
	call := len(m.AddedURIs)
	m.mu.Unlock()
	m.record(fmt.Sprintf("AddTracks %d", len(uris)))

	if m.AddTracksErr != nil {
		if err := m.AddTracksErr(call); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	m.AddedURIs = append(m.AddedURIs, append([]string(nil), uris...))
	m.mu.Unlock()
	return fmt.Sprintf("snapshot-%d", call), nil
}

func (m *MockCatalog) AllUserPlaylists(ctx context.Context, token string) ([]models.SimplePlaylist, error) {
	m.record("AllUserPlaylists")
	return m.Playlists, nil
}

func (m *MockCatalog) AllSavedTracks(ctx context.Context, token string) ([]models.SavedTrack, error) {
	m.record("AllSavedTracks")
	return m.Saved, nil
}

func (m *MockCatalog) AllPlaylistTracks(ctx context.Context, token, playlistID string) ([]models.PlaylistItem, error) {
	m.record("AllPlaylistTracks " + playlistID)
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return m.PlaylistItems[playlistID], nil
}

// CallCount returns how many recorded calls start with prefix.
func (m *MockCatalog) CallCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func slicePage[T any](all []T, limit, offset int) *models.Page[T] {
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	return &models.Page[T]{Items: all[start:end], Total: len(all), Limit: limit, Offset: offset}
}

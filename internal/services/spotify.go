// Spotify Web API implementation of [Catalog]
//
// Response types live in the models package and follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.spotify.com/v1"
	DefaultTimeout = 10 * time.Second

	// MaxArtistIDs is the batch limit of the several-artists endpoint.
	MaxArtistIDs = 50
	// MaxAddTracks is the batch limit of the add-items endpoint.
	MaxAddTracks = 100
)

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func classify(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return shared.ErrUnauthorized
	case http.StatusForbidden:
		return shared.ErrForbidden
	case http.StatusNotFound:
		return shared.ErrNotFound
	default:
		return shared.ErrUpstream
	}
}

// SpotifyClientOpts configures [NewSpotifyClient]. Zero values select the defaults.
type SpotifyClientOpts struct {
	BaseURL    string
	Market     string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables pacing
	HTTPClient *http.Client
	Logger     *log.Logger
}

// SpotifyClient performs bearer-authorized requests against the catalog API.
//
// It is safe for concurrent use.
type SpotifyClient struct {
	baseURL    string
	market     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyClient creates a client from opts.
func NewSpotifyClient(opts SpotifyClientOpts) *SpotifyClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	c := &SpotifyClient{baseURL: baseURL, market: opts.Market, httpClient: httpClient, logger: logger}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

func (c *SpotifyClient) endpoint(path string, query url.Values) string {
	if len(query) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + query.Encode()
}

func (c *SpotifyClient) pageQuery(limit, offset int, withMarket bool) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if withMarket && c.market != "" {
		q.Set("market", c.market)
	}
	return q
}

// doRequest sends a request to rawURL and decodes a JSON response into result when non-nil.
func (c *SpotifyClient) doRequest(ctx context.Context, method, rawURL, token string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, kind: classify(resp.StatusCode)}
		var payload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
			if json.Unmarshal(data, &payload) == nil {
				apiErr.Message = payload.Error.Message
			}
		}
		c.logger.Debug("catalog request failed", "method", method, "url", rawURL, "status", resp.StatusCode)
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUpstream, err)
	}
	return nil
}

func fetchPage[T any](c *SpotifyClient, token string) PageFetcher[T] {
	return func(ctx context.Context, next string) (*models.Page[T], error) {
		var page models.Page[T]
		if err := c.doRequest(ctx, http.MethodGet, next, token, nil, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// CurrentUser retrieves the profile of the token's user.
func (c *SpotifyClient) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.doRequest(ctx, http.MethodGet, c.endpoint("/me", nil), token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves one page of the current user's playlists (limit 1-50).
func (c *SpotifyClient) UserPlaylists(ctx context.Context, token string, limit, offset int) (*models.Page[models.SimplePlaylist], error) {
	q := c.pageQuery(clamp(limit, 1, 50), max(offset, 0), false)
	return fetchPage[models.SimplePlaylist](c, token)(ctx, c.endpoint("/me/playlists", q))
}

// SavedTracks retrieves one page of the current user's saved tracks (limit 1-50).
func (c *SpotifyClient) SavedTracks(ctx context.Context, token string, limit, offset int) (*models.Page[models.SavedTrack], error) {
	q := c.pageQuery(clamp(limit, 1, 50), max(offset, 0), true)
	return fetchPage[models.SavedTrack](c, token)(ctx, c.endpoint("/me/tracks", q))
}

// PlaylistTracks retrieves one page of a playlist's items (limit 1-100).
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, token, playlistID string, limit, offset int) (*models.Page[models.PlaylistItem], error) {
	q := c.pageQuery(clamp(limit, 1, 100), max(offset, 0), true)
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	return fetchPage[models.PlaylistItem](c, token)(ctx, c.endpoint(path, q))
}

// Playlist retrieves playlist metadata.
func (c *SpotifyClient) Playlist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	q := url.Values{}
	if c.market != "" {
		q.Set("market", c.market)
	}
	q.Set("fields", "id,name,description,owner,public,tracks.total,images,external_urls,uri,followers")

	var playlist models.Playlist
	path := "/playlists/" + url.PathEscape(playlistID)
	if err := c.doRequest(ctx, http.MethodGet, c.endpoint(path, q), token, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Artists retrieves full artist objects in a single batched request.
func (c *SpotifyClient) Artists(ctx context.Context, token string, ids []string) ([]models.Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxArtistIDs {
		return nil, fmt.Errorf("%w: at most %d artist ids per request", shared.ErrValidationFailed, MaxArtistIDs)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))

	var response struct {
		Artists []models.Artist `json:"artists"`
	}
	if err := c.doRequest(ctx, http.MethodGet, c.endpoint("/artists", q), token, nil, &response); err != nil {
		return nil, err
	}
	return response.Artists, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, token, userID string, req models.CreatePlaylist) (*models.Playlist, error) {
	var playlist models.Playlist
	path := "/users/" + url.PathEscape(userID) + "/playlists"
	if err := c.doRequest(ctx, http.MethodPost, c.endpoint(path, nil), token, req, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends up to [MaxAddTracks] URIs to a playlist and returns the new snapshot id.
func (c *SpotifyClient) AddTracks(ctx context.Context, token, playlistID string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", nil
	}
	if len(uris) > MaxAddTracks {
		return "", fmt.Errorf("%w: at most %d tracks per request", shared.ErrValidationFailed, MaxAddTracks)
	}

	var response struct {
		SnapshotID string `json:"snapshot_id"`
	}
	body := map[string][]string{"uris": uris}
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := c.doRequest(ctx, http.MethodPost, c.endpoint(path, nil), token, body, &response); err != nil {
		return "", err
	}
	return response.SnapshotID, nil
}

// AllUserPlaylists aggregates every page of the current user's playlists.
func (c *SpotifyClient) AllUserPlaylists(ctx context.Context, token string) ([]models.SimplePlaylist, error) {
	first, err := c.UserPlaylists(ctx, token, 50, 0)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, first, fetchPage[models.SimplePlaylist](c, token))
}

// AllSavedTracks aggregates the user's entire saved-tracks library.
func (c *SpotifyClient) AllSavedTracks(ctx context.Context, token string) ([]models.SavedTrack, error) {
	first, err := c.SavedTracks(ctx, token, 50, 0)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, first, fetchPage[models.SavedTrack](c, token))
}

// AllPlaylistTracks aggregates every item of a playlist.
func (c *SpotifyClient) AllPlaylistTracks(ctx context.Context, token, playlistID string) ([]models.PlaylistItem, error) {
	first, err := c.PlaylistTracks(ctx, token, playlistID, 100, 0)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, first, fetchPage[models.PlaylistItem](c, token))
}

// IsAccessError reports whether err is a 401, 403 or 404 from the catalog.
func IsAccessError(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrForbidden) || errors.Is(err, shared.ErrNotFound)
}

var _ Catalog = (*SpotifyClient)(nil)

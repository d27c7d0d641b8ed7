package tasks

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/services"
	"github.com/desertthunder/toolify/internal/shared"
)

const (
	MinAnalyzeTracks = 10
	MaxAnalyzeTracks = 1000
	// TopN caps both ranked lists.
	TopN = 5
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// Count is a ranked key with its frequency.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AnalysisResult holds the statistics computed by [Analyze].
type AnalysisResult struct {
	TopDecades     []Count `json:"top_decades"`
	TopArtists     []Count `json:"top_artists"`
	MeanPopularity int     `json:"mean_popularity"`
	Tracks         int     `json:"tracks"`
}

// counter counts keys and remembers the order they were first seen in.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// top ranks keys by descending count. Equal counts keep first-seen order.
func (c *counter) top(n int) []Count {
	ranked := make([]Count, 0, len(c.order))
	for _, k := range c.order {
		ranked = append(ranked, Count{Key: k, Count: c.counts[k]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Decade returns the decade label ("1990s") for the first four digit run in a release date.
func Decade(releaseDate string) (string, bool) {
	year := yearPattern.FindString(releaseDate)
	if year == "" {
		return "", false
	}
	return year[:3] + "0s", true
}

// Analyze computes decade and first-artist frequencies and the mean popularity of items.
//
// Tracks without a parseable year or without artists are left out of the respective
// ranking. Popularity is averaged over tracks that report one and rounded half to even; the
// mean is 0 when none do.
func Analyze(items []models.PlaylistItem) AnalysisResult {
	decades, artists := newCounter(), newCounter()
	sum, n := 0, 0

	for _, item := range items {
		t := item.Track
		if d, ok := Decade(t.Album.ReleaseDate); ok {
			decades.add(d)
		}
		if len(t.Artists) > 0 && t.Artists[0].ID != "" {
			artists.add(t.Artists[0].ID)
		}
		if t.Popularity != nil {
			sum += *t.Popularity
			n++
		}
	}

	result := AnalysisResult{
		TopDecades: decades.top(TopN),
		TopArtists: artists.top(TopN),
		Tracks:     len(items),
	}
	if n > 0 {
		result.MeanPopularity = int(math.RoundToEven(float64(sum) / float64(n)))
	}
	return result
}

// RankedArtist is a full artist object with the number of tracks it leads.
type RankedArtist struct {
	Artist models.Artist `json:"artist"`
	Count  int           `json:"count"`
}

// AnalysisReport is the result of [PlaylistEngine.AnalyzePlaylist].
type AnalysisReport struct {
	Playlist models.Playlist `json:"playlist"`
	Result   AnalysisResult  `json:"result"`
	Artists  []RankedArtist  `json:"artists"`
}

// AnalyzePlaylist analyzes the playlist behind link, a URL or URI. token is usually a
// client-credentials token, so only public playlists are reachable.
func (e *PlaylistEngine) AnalyzePlaylist(ctx context.Context, token, link string, progress chan<- ProgressUpdate) (*AnalysisReport, error) {
	id, ok := shared.ExtractPlaylistID(link)
	if !ok {
		return nil, shared.NewUserError(shared.ErrValidationFailed, "Invalid Spotify Playlist URL")
	}

	sendProgress(progress, fetchPlaylistUpdate(id))
	meta, err := e.catalog.Playlist(ctx, token, id)
	if err != nil {
		return nil, lookupError("playlist "+id, err)
	}
	sendProgress(progress, foundPlaylistUpdate(meta))

	switch total := meta.Tracks.Total; {
	case total < MinAnalyzeTracks:
		return nil, shared.NewUserError(shared.ErrValidationFailed, "Playlist too short. Consider adding more songs.")
	case total > MaxAnalyzeTracks:
		return nil, shared.NewUserError(shared.ErrValidationFailed, "Maximum length of Playlist allowed is 1000 tracks")
	}

	items, err := e.catalog.AllPlaylistTracks(ctx, token, id)
	if err != nil {
		return nil, lookupError("tracks of "+id, err)
	}
	sendProgress(progress, fetchedTracksUpdate(len(items)))

	result := Analyze(items)
	report := &AnalysisReport{Playlist: *meta, Result: result}
	if len(result.TopArtists) == 0 {
		return report, nil
	}

	ids := make([]string, len(result.TopArtists))
	for i, c := range result.TopArtists {
		ids[i] = c.Key
	}
	sendProgress(progress, fetchArtistsUpdate(len(ids)))
	artists, err := e.catalog.Artists(ctx, token, ids)
	if err != nil {
		return nil, fmt.Errorf("top artists: %w: %v", shared.ErrUpstreamUnavailable, err)
	}

	byID := make(map[string]models.Artist, len(artists))
	for _, a := range artists {
		byID[a.ID] = a
	}
	for _, c := range result.TopArtists {
		a, ok := byID[c.Key]
		if !ok {
			a = models.Artist{ID: c.Key}
		}
		report.Artists = append(report.Artists, RankedArtist{Artist: a, Count: c.Count})
	}

	e.logger.Info("analyzed playlist", "playlist", id, "tracks", result.Tracks, "mean_popularity", result.MeanPopularity)
	return report, nil
}

// lookupError converts a failure to read a specific playlist. Any 401, 403 or 404 means the
// playlist cannot be accessed with this token.
func lookupError(op string, err error) error {
	if services.IsAccessError(err) {
		return fmt.Errorf("%s: %w", op, shared.NewUserError(shared.ErrAccessDenied, "Unable to access Playlist"))
	}
	return userCallError(op, err)
}

package shared

import "regexp"

var (
	trackIDPattern    = regexp.MustCompile(`track[/:]([A-Za-z0-9]{22})`)
	playlistIDPattern = regexp.MustCompile(`playlist[/:]([A-Za-z0-9]{22})`)
)

// ExtractTrackID returns the 22 character base62 id that follows "track/" or "track:"
// in a URL or URI. Anything after the id (query strings, fragments) is ignored.
func ExtractTrackID(s string) (string, bool) {
	return extract(trackIDPattern, s)
}

// ExtractPlaylistID is [ExtractTrackID] for "playlist/" and "playlist:".
func ExtractPlaylistID(s string) (string, bool) {
	return extract(playlistIDPattern, s)
}

func extract(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TrackURI builds the catalog URI for a track id.
func TrackURI(id string) string {
	return "spotify:track:" + id
}

package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/shared"
)

// Header is the column order of exported files.
var Header = []string{"Name", "Added at", "url", "spotify_id", "Album", "Album Url", "Artist", "Duration", "ISRC", "Explicit"}

// Record flattens a playlist item into a row matching [Header]. Absent fields become "".
func Record(item models.PlaylistItem) []string {
	t := item.Track
	return []string{
		t.Name,
		item.AddedAt,
		t.ExternalURLs.Spotify,
		t.URI,
		t.Album.Name,
		t.Album.ExternalURLs.Spotify,
		strings.Join(t.ArtistNames(), ", "),
		shared.FormatDuration(t.DurationMS),
		t.ExternalIDs.ISRC,
		strconv.FormatBool(t.Explicit),
	}
}

// WriteCSV writes the header and one row per item to w.
func WriteCSV(w io.Writer, items []models.PlaylistItem) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, item := range items {
		if err := writer.Write(Record(item)); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ExportToCSV renders items as a CSV document.
func ExportToCSV(items []models.PlaylistItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFilename is the attachment name for an export made at t.
func ExportFilename(t time.Time) string {
	return t.Format(time.DateOnly) + "_spotify_playlist.csv"
}

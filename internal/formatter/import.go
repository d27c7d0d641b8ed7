package formatter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/desertthunder/toolify/internal/shared"
)

const (
	// MaxImportTracks is the largest number of tracks a single import may restore.
	MaxImportTracks = 1000
	// MaxUploadBytes caps uploaded CSV files.
	MaxUploadBytes = 8 << 20

	ColumnSpotifyID = "spotify_id"
	ColumnURL       = "url"
)

var allowedTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
}

// ImportResult is the outcome of parsing an uploaded CSV.
type ImportResult struct {
	IDs     []string // track ids in file order
	Column  string   // the column the ids were read from
	Rows    int      // data rows read, excluding the header
	Skipped int      // rows whose id could not be extracted
}

// URIs returns the catalog URIs for the imported ids.
func (r *ImportResult) URIs() []string {
	uris := make([]string, 0, len(r.IDs))
	for _, id := range r.IDs {
		uris = append(uris, shared.TrackURI(id))
	}
	return uris
}

func invalid(msg string) error {
	return shared.NewUserError(shared.ErrValidationFailed, msg)
}

// CheckUpload validates an upload's metadata before its body is parsed.
func CheckUpload(filename, contentType string, size int64) error {
	if size > MaxUploadBytes {
		return invalid("The file is too large. The limit is 8 MB.")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return invalid("Only .csv files can be restored.")
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	if !allowedTypes[strings.ToLower(strings.TrimSpace(mediaType))] {
		return invalid("The uploaded file is not a CSV file.")
	}
	return nil
}

// ImportCSV reads track ids from the spotify_id or url column of r. spotify_id is used when
// both are present.
func ImportCSV(r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, invalid("The CSV file is empty.")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", invalid("The CSV file could not be read."), err)
	}

	col, name := idColumn(header)
	if col < 0 {
		return nil, invalid("The CSV file needs a url or spotify_id column.")
	}

	result := &ImportResult{Column: name}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", invalid("The CSV file could not be read."), err)
		}

		result.Rows++
		if col >= len(record) {
			result.Skipped++
			continue
		}
		id, ok := shared.ExtractTrackID(record[col])
		if !ok {
			result.Skipped++
			continue
		}
		result.IDs = append(result.IDs, id)
	}

	switch n := len(result.IDs); {
	case n == 0:
		return nil, invalid("The CSV file does not contain any tracks.")
	case n > MaxImportTracks:
		return nil, invalid(fmt.Sprintf("The CSV file has %d tracks. At most %d can be restored.", n, MaxImportTracks))
	}
	return result, nil
}

func idColumn(header []string) (int, string) {
	urlCol := -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch h {
		case ColumnSpotifyID:
			return i, ColumnSpotifyID
		case ColumnURL:
			if urlCol < 0 {
				urlCol = i
			}
		}
	}
	if urlCol >= 0 {
		return urlCol, ColumnURL
	}
	return -1, ""
}

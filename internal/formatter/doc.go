// Package formatter converts playlist items to and from CSV.
//
// Export writes one row per item under a fixed ten column header. Import reads any CSV that
// has a url or spotify_id column and recovers the track ids: rows are handled leniently
// (unparseable ids are skipped and counted) while the file as a whole is held to strict
// limits (at least one track, at most [MaxImportTracks]).
package formatter

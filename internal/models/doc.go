// Package models defines the catalog resources exchanged with the Spotify Web API.
//
// The types mirror the JSON documents returned by the API closely enough to decode them
// directly. Only the fields used for backups, exports, restores and analysis are kept:
//   - [Track], [Album], [SimpleArtist] : the data written to CSV exports
//   - [PlaylistItem], [SavedTrack] : a track plus the time it was added
//   - [SimplePlaylist], [Playlist] : listings and metadata
//   - [Artist] : full artist objects shown in analysis results
//   - [Page] : one page of a cursor-paginated response
//
// Nothing here is persisted. Values live for the duration of a single request.
package models

// Package tasks implements the playlist operations behind every page and command.
//
// # Core Operations
//
// [PlaylistEngine] wraps a [services.Catalog] and exposes four operations:
//
//  1. [PlaylistEngine.BrowsePlaylists] : one page of the user's playlists
//     - 50 playlists per page, addressed by offset
//     - the first page also carries the size of the saved-tracks library
//
//  2. [PlaylistEngine.ExportTracks] : every item of a playlist or of the saved library
//
//  3. [PlaylistEngine.AnalyzePlaylist] : statistics for a public playlist
//     - accepts a playlist URL or URI
//     - requires between 10 and 1000 tracks
//     - top decades, top artists and mean popularity via [Analyze]
//
//  4. [PlaylistEngine.Restore] : re-create a playlist from a list of track URIs
//     - tracks are added sequentially in batches of 100
//     - the first failed batch stops the restore; earlier batches stay applied
//
// # Errors
//
// Catalog failures are converted where they happen. A 401 on a user call wraps
// [shared.ErrAuthorizationFailed]; 403 and 404 wrap [shared.ErrAccessDenied]; anything
// else wraps [shared.ErrUpstreamUnavailable]. Input problems are [*shared.UserError]
// values of kind [shared.ErrValidationFailed].
//
// # Progress Reporting
//
// Long operations accept an optional channel of [ProgressUpdate]. Sends never block: if the
// receiver is not keeping up, updates are dropped.
package tasks

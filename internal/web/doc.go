// Package web is the browser front end: backup and export of playlists, playlist analysis
// and restoring a playlist from an exported CSV file.
//
// # Routes
//
//	GET  /                   home page and login prompt
//	GET  /login, /callback   OAuth flow (see server.OAuthHandler)
//	GET  /backup?page=N      the user's playlists, 50 per page
//	GET  /download?playlist= CSV attachment; "saved" selects the saved tracks
//	GET  /analyze-playlist   analysis form, with the user's playlists when logged in
//	GET  /analyzed?playlist= analysis of a public playlist link
//	GET  /restore            upload form
//	POST /restore            create a playlist from an uploaded CSV
//	GET  /logout             drop the session
//	GET  /error, /not-found  error pages
//
// Unknown paths redirect to /not-found.
//
// # Errors
//
// Handlers convert failures in one place. Validation and access errors return to the
// originating form with a flash message. Authorization failures reset the session and
// send the user to the login prompt. Everything else lands on /error.
//
// # Tokens
//
// User tokens are refreshed through the session's locked update so concurrent requests
// from one browser share a refresh. Analysis uses the client-credentials server token and
// works without logging in.
package web

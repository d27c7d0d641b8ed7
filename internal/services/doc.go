// Package services implements the catalog client for the Spotify Web API.
//
// # Client
//
// [SpotifyClient] is a small JSON REST client. Every call takes the bearer token to use,
// so a single client serves all sessions; token lifecycles live in the auth package.
// Requests carry an explicit timeout and may be paced with a [rate.Limiter]. There are no
// retries: a failed call fails the operation that made it.
//
// # Errors
//
// Non-2xx responses are returned as [*APIError], which unwraps to one of
//   - [shared.ErrUnauthorized] : 401
//   - [shared.ErrForbidden] : 403
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrUpstream] : any other status, transport failures and undecodable bodies
//
// # Pagination
//
// [Collect] follows the absolute next URL of each page until it is null. Aggregation is all
// or nothing: if any page fails, no items are returned.
package services

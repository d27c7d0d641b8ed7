// Package auth manages the two bearer-token lifecycles a session carries.
//
// A user token comes from the authorization-code grant and is renewed with the refresh
// token. A server token comes from the client-credentials grant and is used for public
// catalog reads. Each has its own expiry, fixed at one hour after issuance regardless of
// what the provider reports, and is refreshed lazily the next time it is needed.
//
// [TokenState] is the per-session value; [Manager] operations take one and return the
// updated copy, leaving storage to the caller. [Locker] serializes the check-refresh-write
// sequence for a session key.
package auth

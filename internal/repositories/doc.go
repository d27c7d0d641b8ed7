// Package repositories provides SQLite persistence for web sessions.
//
// [SessionStore] implements the scs Store interface, so session payloads (including the
// token pair each session carries) survive restarts. Nothing else is persisted.
package repositories

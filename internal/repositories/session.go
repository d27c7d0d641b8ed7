package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/toolify/internal/shared"
)

// SessionStore implements [scs.Store] on the sessions table.
type SessionStore struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewSessionStore creates a new [SessionStore] with the given database connection.
func NewSessionStore(db *sql.DB, logger *log.Logger) *SessionStore {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &SessionStore{db: db, logger: logger, now: time.Now}
}

// Find returns the data for an unexpired session token.
func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM sessions WHERE token = ? AND expiry > ?",
		token, s.now().UnixNano(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query session: %w", err)
	}
	return data, true, nil
}

// Commit inserts or replaces the session data for token.
func (s *SessionStore) Commit(token string, data []byte, expiry time.Time) error {
	_, err := s.db.Exec(
		"REPLACE INTO sessions (token, data, expiry) VALUES (?, ?, ?)",
		token, data, expiry.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Delete removes a session. Unknown tokens are not an error.
func (s *SessionStore) Delete(token string) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every expired session and returns how many were removed.
func (s *SessionStore) DeleteExpired() (int64, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE expiry <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanup deletes expired sessions every interval until ctx is done.
func (s *SessionStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.DeleteExpired()
				if err != nil {
					s.logger.Error("session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					s.logger.Debug("removed expired sessions", "count", n)
				}
			}
		}
	}()
}

var _ scs.Store = (*SessionStore)(nil)

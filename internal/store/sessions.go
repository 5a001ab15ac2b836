package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

// SaveSession upserts the single session row for a host.
func (s *Store) SaveSession(sess *model.Session) error {
	_, err := s.db.Exec(`INSERT INTO sessions (host, session_id, token, created_at, last_validated)
		VALUES (?,?,?,?,?)
		ON CONFLICT(host) DO UPDATE SET
			session_id=excluded.session_id, token=excluded.token,
			last_validated=excluded.last_validated`,
		sess.Host, sess.SessionID, sess.Token,
		sess.CreatedAt.Format(time.RFC3339), sess.LastValidated.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save session for %s: %w", sess.Host, err)
	}
	return nil
}

// GetSession returns the stored session for host, if any.
func (s *Store) GetSession(host string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT host, session_id, token, created_at, last_validated FROM sessions WHERE host = ?`, host)
	var sess model.Session
	var createdAt, lastValidated string
	if err := row.Scan(&sess.Host, &sess.SessionID, &sess.Token, &createdAt, &lastValidated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session for %s: %w", host, err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.LastValidated, _ = time.Parse(time.RFC3339, lastValidated)
	return &sess, nil
}

// DeleteSession removes the session row for host (manual logout).
func (s *Store) DeleteSession(host string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE host = ?`, host)
	if err != nil {
		return fmt.Errorf("delete session for %s: %w", host, err)
	}
	return nil
}

package host

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/warpdl/warpbroker/internal/model"
)

// sessionCache mirrors a host's session blob into the OS keyring, giving
// the broker a way to survive a restart without touching the database when
// the database itself is the thing being debugged. The persistence store's
// sessions table remains authoritative; this is a secondary, best-effort
// cache populated opportunistically and never required to succeed.
type sessionCache struct {
	appName string
}

func newSessionCache(appName string) *sessionCache {
	return &sessionCache{appName: appName}
}

type cachedSessionBlob struct {
	SessionID     string    `json:"session_id"`
	Token         string    `json:"token"`
	CreatedAt     time.Time `json:"created_at"`
	LastValidated time.Time `json:"last_validated"`
}

func (c *sessionCache) store(sess *model.Session) {
	blob, err := json.Marshal(cachedSessionBlob{
		SessionID:     sess.SessionID,
		Token:         sess.Token,
		CreatedAt:     sess.CreatedAt,
		LastValidated: sess.LastValidated,
	})
	if err != nil {
		return
	}
	_ = keyring.Set(c.appName, sess.Host, string(blob))
}

func (c *sessionCache) load(host string) (*model.Session, error) {
	raw, err := keyring.Get(c.appName, host)
	if err != nil {
		return nil, fmt.Errorf("keyring session lookup for %s: %w", host, err)
	}
	var blob cachedSessionBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, fmt.Errorf("decode cached session for %s: %w", host, err)
	}
	return &model.Session{
		Host:          host,
		SessionID:     blob.SessionID,
		Token:         blob.Token,
		CreatedAt:     blob.CreatedAt,
		LastValidated: blob.LastValidated,
	}, nil
}

func (c *sessionCache) delete(host string) {
	_ = keyring.Delete(c.appName, host)
}

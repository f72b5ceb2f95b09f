package db

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"dtw/pkg/logger"
)

// MemorySessions keeps sessions in process memory. The default for single
// instance deployments; a restart forgets every session.
type MemorySessions struct {
	cache *ttlcache.Cache[string, SessionDoc]
	log   *logger.Log
}

func NewMemorySessions(log *logger.Log) *MemorySessions {
	cache := ttlcache.New[string, SessionDoc](
		ttlcache.WithDisableTouchOnHit[string, SessionDoc](),
	)
	go cache.Start()
	return &MemorySessions{cache: cache, log: log}
}

// Close stops the cache janitor.
func (m *MemorySessions) Close(ctx context.Context) error {
	m.cache.Stop()
	return nil
}

func sessionKey(clientID, nonce string) string {
	return clientID + "|" + nonce
}

// Save stores a private copy of the session. The entry outlives its logical
// expiry by ExpiredRetention, like the mongo purge index.
func (m *MemorySessions) Save(_ context.Context, doc *SessionDoc) error {
	ttl := ExpiredRetention
	if !doc.ExpiresAt.IsZero() {
		if until := time.Until(doc.ExpiresAt); until > 0 {
			ttl = until + ExpiredRetention
		}
	}
	m.cache.Set(sessionKey(doc.ClientID, doc.Nonce), *doc, ttl)
	m.log.Debug("session saved", "session_id", doc.SessionID, "state", string(doc.State))
	return nil
}

// Get hands out a copy so callers can mutate freely, matching the mongo
// store's decode semantics.
func (m *MemorySessions) Get(_ context.Context, clientID, nonce string) (*SessionDoc, error) {
	item := m.cache.Get(sessionKey(clientID, nonce))
	if item == nil {
		return nil, ErrNotFound
	}
	doc := item.Value()
	return &doc, nil
}

// Delete removes one session. Deleting an unknown session is not an error.
func (m *MemorySessions) Delete(_ context.Context, clientID, nonce string) error {
	m.cache.Delete(sessionKey(clientID, nonce))
	return nil
}

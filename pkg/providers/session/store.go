// Package session caches derived vendor credentials (short-lived access
// tokens, device registrations, scraped page tokens) keyed by provider.
// Refreshes are single-flight: when many concurrent requests find the
// same credential missing or expired, exactly one refresh runs and all
// waiters share its result.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// expirySkew invalidates credentials slightly before their declared
// expiry so in-flight requests don't race the vendor clock.
const expirySkew = 30 * time.Second

// Credential is one derived credential set for a provider.
type Credential struct {
	// Token is the primary derived credential (access token, session id)
	Token string

	// Extra carries vendor-specific companion values
	// (device id, traffic id, scraped page token)
	Extra map[string]string

	// ExpiresAt is when the credential stops being usable.
	// Zero means no known expiry; such credentials live until invalidated.
	ExpiresAt time.Time
}

// Valid reports whether the credential is still usable.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.Token == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(c.ExpiresAt.Add(-expirySkew))
}

// RefreshFunc derives a fresh credential from the operator-supplied raw
// credential. It is invoked at most once per expiry, regardless of
// concurrency.
type RefreshFunc func(ctx context.Context) (*Credential, error)

// Store is a concurrency-safe credential cache.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Credential
	group   singleflight.Group
	janitor *cron.Cron
	refreshes map[string]uint64

	// onRefresh, when set, is notified after each successful refresh
	onRefresh func(key string)
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{
		entries:   make(map[string]*Credential),
		refreshes: make(map[string]uint64),
	}
}

// Acquire returns a valid credential for key, invoking refresh when the
// cached one is missing or expired. Concurrent acquirers of the same key
// share a single refresh call.
func (s *Store) Acquire(ctx context.Context, key string, refresh RefreshFunc) (*Credential, error) {
	s.mu.RLock()
	cred := s.entries[key]
	s.mu.RUnlock()

	if cred.Valid(time.Now()) {
		return cred, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		// A refresh that completed while we waited for the flight slot
		// serves every waiter.
		s.mu.RLock()
		cached := s.entries[key]
		s.mu.RUnlock()
		if cached.Valid(time.Now()) {
			return cached, nil
		}

		fresh, err := refresh(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.entries[key] = fresh
		s.refreshes[key]++
		onRefresh := s.onRefresh
		s.mu.Unlock()

		if onRefresh != nil {
			onRefresh(key)
		}
		slog.Debug("session refreshed", "key", key, "expires_at", fresh.ExpiresAt)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Credential), nil
}

// Invalidate discards the cached credential for key. The next Acquire
// triggers a refresh.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	slog.Debug("session invalidated", "key", key)
}

// SetOnRefresh installs a callback notified after each successful
// refresh with the refreshed key. Install it before the store sees
// traffic.
func (s *Store) SetOnRefresh(fn func(key string)) {
	s.mu.Lock()
	s.onRefresh = fn
	s.mu.Unlock()
}

// Refreshes returns how many refreshes have completed for key.
func (s *Store) Refreshes(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshes[key]
}

// StartJanitor begins periodic eviction of expired credentials on the
// given cron schedule (e.g. "@every 5m"). Eviction keeps the store from
// accumulating stale entries for idle providers.
func (s *Store) StartJanitor(schedule string) error {
	janitor := cron.New()
	_, err := janitor.AddFunc(schedule, s.evictExpired)
	if err != nil {
		return err
	}
	janitor.Start()

	s.mu.Lock()
	s.janitor = janitor
	s.mu.Unlock()
	return nil
}

func (s *Store) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cred := range s.entries {
		if !cred.Valid(now) {
			delete(s.entries, key)
			slog.Debug("evicted expired session", "key", key)
		}
	}
}

// Close stops the janitor, if running.
func (s *Store) Close() {
	s.mu.Lock()
	janitor := s.janitor
	s.janitor = nil
	s.mu.Unlock()
	if janitor != nil {
		janitor.Stop()
	}
}

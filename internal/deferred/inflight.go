// Package deferred implements the Deferred Coordinator (C10, §4.10): the
// process-local in-flight registry that gives at-most-one-translation
// per (site, lang, hash), a bounded background worker pool that drains
// cache misses after the response has already been sent, and the poll
// endpoint + client script that complete the handshake.
package deferred

import (
	"sync"
	"time"
)

// InFlightKey identifies one translation dispatched but not yet
// persisted (§3).
type InFlightKey struct {
	SiteID string
	Lang   string
	Hash   string
}

type inFlightEntry struct {
	expiresAt time.Time
}

// Registry is the process-local in-flight set (§4.10, §5). It is safe
// for concurrent use; CheckAndSet is the atomic primitive the
// at-most-one-translation invariant (P7) is built on.
type Registry struct {
	mu      sync.Mutex
	entries map[InFlightKey]inFlightEntry
	ttl     time.Duration
}

// DefaultTTL bounds how long a dispatched-but-never-completed entry
// blocks future requests from retrying; a crash simply leaves it to
// expire and a later request reissues the translation (§5).
const DefaultTTL = 2 * time.Minute

// NewRegistry builds an empty Registry. ttl of 0 uses DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{entries: map[InFlightKey]inFlightEntry{}, ttl: ttl}
}

// CheckAndSet returns true if key was already in flight (a concurrent
// request beat this one to it); otherwise it registers key and returns
// false, meaning the caller is the one request responsible for
// dispatching the translation.
func (r *Registry) CheckAndSet(key InFlightKey) (alreadyInFlight bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		if time.Now().Before(e.expiresAt) {
			return true
		}
		// Expired: fall through and treat as a fresh registration.
	}
	r.entries[key] = inFlightEntry{expiresAt: time.Now().Add(r.ttl)}
	return false
}

// Unregister removes key once its background translation has completed
// (successfully or not) so later requests can retry on failure.
func (r *Registry) Unregister(key InFlightKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Sweep removes expired entries. Nothing in this module calls it; entries
// otherwise leave the map through Unregister, or are replaced by
// CheckAndSet once expired.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, k)
		}
	}
}

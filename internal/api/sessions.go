package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/provform/internal/profile"
)

const defaultSessionTTL = time.Hour

// sessionEntry guards one Session; handlers hold mu for the whole request.
type sessionEntry struct {
	mu       sync.Mutex
	session  *profile.Session
	lastUsed time.Time
}

// sessionRegistry maps session IDs to live sessions and drops those idle
// longer than ttl.
type sessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	now     func() time.Time
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionRegistry{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *sessionRegistry) add(s *profile.Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	id := uuid.New().String()
	r.entries[id] = &sessionEntry{session: s, lastUsed: r.now()}
	return id
}

func (r *sessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	if r.now().Sub(e.lastUsed) > r.ttl {
		delete(r.entries, id)
		return nil, false
	}
	e.lastUsed = r.now()
	return e, true
}

func (r *sessionRegistry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *sessionRegistry) sweepLocked() {
	now := r.now()
	for id, e := range r.entries {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.entries, id)
		}
	}
}

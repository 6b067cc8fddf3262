package server

import (
	"sync"
	"time"

	"github.com/smonier/importContentFromJson/internal/importer"
)

// sessionStore keeps the live import sessions in memory. Sessions that have
// not been touched within the TTL are dropped on the next sweep; a browser
// that walked away mid-wizard should not pin its uploaded records forever.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*entry
}

type entry struct {
	session  *importer.Session
	lastSeen time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, sessions: map[string]*entry{}}
}

func (st *sessionStore) Add(s *importer.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked()
	st.sessions[s.ID()] = &entry{session: s, lastSeen: time.Now()}
}

func (st *sessionStore) Get(id string) (*importer.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.session, true
}

func (st *sessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

func (st *sessionStore) sweepLocked() {
	if st.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-st.ttl)
	for id, e := range st.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(st.sessions, id)
		}
	}
}

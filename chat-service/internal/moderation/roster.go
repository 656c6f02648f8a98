package moderation

import (
	"sort"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

// Roster maps live connections to the identity they claimed.
type Roster struct {
	conns map[string]*domain.Session
}

func NewRoster() *Roster {
	return &Roster{conns: make(map[string]*domain.Session)}
}

// Connect registers an unidentified connection. Connecting an id twice
// keeps the existing record.
func (r *Roster) Connect(connID string, now time.Time) *domain.Session {
	if s, ok := r.conns[connID]; ok {
		return s
	}
	s := domain.NewSession(connID, now)
	r.conns[connID] = s
	return s
}

// Bind sets the identity of a connection. It reports false for an unknown
// connection.
func (r *Roster) Bind(connID, authorID, name string) bool {
	s, ok := r.conns[connID]
	if !ok {
		return false
	}
	s.Identify(authorID, name)
	return true
}

// Rename changes the display name of an identified connection.
func (r *Roster) Rename(connID, name string) bool {
	s, ok := r.conns[connID]
	if !ok || !s.IsIdentified() {
		return false
	}
	s.Rename(name)
	return true
}

// Unbind removes a connection. Removing an unknown id is a no-op that
// reports false.
func (r *Roster) Unbind(connID string) (*domain.Session, bool) {
	s, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	return s, ok
}

func (r *Roster) Lookup(connID string) (*domain.Session, bool) {
	s, ok := r.conns[connID]
	return s, ok
}

// Names returns the distinct display names of identified connections,
// sorted.
func (r *Roster) Names() []string {
	seen := make(map[string]struct{}, len(r.conns))
	names := make([]string, 0, len(r.conns))
	for _, s := range r.conns {
		if !s.IsIdentified() {
			continue
		}
		if _, dup := seen[s.DisplayName]; dup {
			continue
		}
		seen[s.DisplayName] = struct{}{}
		names = append(names, s.DisplayName)
	}
	sort.Strings(names)
	return names
}

// ConnsFor returns the connection ids bound to an author, sorted.
func (r *Roster) ConnsFor(authorID string) []string {
	var ids []string
	for id, s := range r.conns {
		if s.IsIdentified() && s.UserID == authorID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live connections.
func (r *Roster) Len() int {
	return len(r.conns)
}

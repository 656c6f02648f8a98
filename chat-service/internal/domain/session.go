package domain

import "time"

// Session is the server-side record of one live connection. It is owned
// by the hub goroutine and never shared, so it carries no lock.
type Session struct {
	ConnID      string
	UserID      string
	DisplayName string
	Verified    bool
	ConnectedAt time.Time
}

// NewSession creates an unidentified session for a connection.
func NewSession(connID string, now time.Time) *Session {
	return &Session{ConnID: connID, ConnectedAt: now}
}

// Identify binds the session to an author identity.
func (s *Session) Identify(userID, displayName string) {
	s.UserID = userID
	s.DisplayName = displayName
	s.Verified = true
}

// Rename changes the display name of an identified session.
func (s *Session) Rename(displayName string) {
	s.DisplayName = displayName
}

// IsIdentified reports whether requestSync has bound an identity.
func (s *Session) IsIdentified() bool {
	return s.Verified && s.UserID != ""
}

package domain

import (
	"sync"
	"time"
)

// Session represents a client's WebSocket session with the coordinator.
type Session struct {
	ID           string // connection ID, doubles as participant ID once admitted
	UserID       string
	DisplayName  string
	Role         ParticipantRole
	MeetingID    string
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

// NewSession creates a new session for a connection.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Admit records the identity and meeting this session was admitted to.
func (s *Session) Admit(meetingID, userID, displayName string, role ParticipantRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MeetingID = meetingID
	s.UserID = userID
	s.DisplayName = displayName
	s.Role = role
	s.LastActiveAt = time.Now()
}

// Leave clears the meeting association.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MeetingID = ""
	s.Role = ""
}

// InMeeting reports whether the session is currently admitted to a meeting.
func (s *Session) InMeeting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MeetingID != ""
}

// CurrentMeeting returns the meeting this session is admitted to, if any.
func (s *Session) CurrentMeeting() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MeetingID
}

// Identity returns the admitted identity of this session.
func (s *Session) Identity() (userID, displayName string, role ParticipantRole) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID, s.DisplayName, s.Role
}

// UpdateActivity refreshes the last-active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}

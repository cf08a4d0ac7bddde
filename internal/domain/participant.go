package domain

import (
	"time"
)

// ParticipantRole represents a participant's role in a meeting.
type ParticipantRole string

const (
	RoleHost        ParticipantRole = "host"
	RoleParticipant ParticipantRole = "participant"
	RoleGuest       ParticipantRole = "guest"
)

// MediaFlags holds a participant's current media state.
type MediaFlags struct {
	AudioEnabled  bool `json:"audio_enabled"`
	VideoEnabled  bool `json:"video_enabled"`
	ScreenSharing bool `json:"screen_sharing"`
	HandRaised    bool `json:"hand_raised"`
}

// Flag names used on the wire and in toggle events. Unknown names in a
// partial update are ignored so newer clients can send flags this build
// does not know about.
const (
	FlagAudio       = "audio"
	FlagVideo       = "video"
	FlagScreenShare = "screen_share"
	FlagHand        = "hand"
)

// FlagUpdate is a partial media-flag update. Nil fields are left unchanged.
type FlagUpdate struct {
	AudioEnabled  *bool
	VideoEnabled  *bool
	ScreenSharing *bool
	HandRaised    *bool
}

// Participant is one admitted connection in a meeting. A user who rejoins
// gets a new Participant with a new connection ID but the same UserID.
type Participant struct {
	ID          string          `json:"id"` // per-session connection ID
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Role        ParticipantRole `json:"role"`
	Flags       MediaFlags      `json:"flags"`
	JoinedAt    time.Time       `json:"joined_at"`
	LeftAt      *time.Time      `json:"left_at,omitempty"`
}

// Snapshot returns a copy safe to hand to other goroutines.
func (p *Participant) Snapshot() Participant {
	return *p
}

// Handle identifies one admitted participant connection.
type Handle struct {
	MeetingID     string
	ParticipantID string
}

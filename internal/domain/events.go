package domain

import (
	"encoding/json"
	"time"
)

// WebSocket message types to client.
const (
	MsgTypeRoomJoined           = "room-joined"
	MsgTypeParticipantJoined    = "participant-joined"
	MsgTypeParticipantLeft      = "participant-left"
	MsgTypeAudioToggle          = "participant-audio-toggle"
	MsgTypeVideoToggle          = "participant-video-toggle"
	MsgTypeScreenShareToggle    = "participant-screen-share-toggle"
	MsgTypeHandToggle           = "participant-hand-toggle"
	MsgTypeRecordingToggle      = "recording-toggle"
	MsgTypeTranscriptionStarted = "transcription-started"
	MsgTypeTranscriptionStopped = "transcription-stopped"
	MsgTypeNewMessage           = "new-message"
	MsgTypeTranscriptionSegment = "transcription-segment"
	MsgTypeQualityChanged       = "quality-changed"
	MsgTypeMeetingEnded         = "meeting-ended"
	MsgTypeError                = "error"
	MsgTypePong                 = "pong"
)

// ToggleEventType maps a flag name to its server event type.
func ToggleEventType(flag string) string {
	switch flag {
	case FlagAudio:
		return MsgTypeAudioToggle
	case FlagVideo:
		return MsgTypeVideoToggle
	case FlagScreenShare:
		return MsgTypeScreenShareToggle
	case FlagHand:
		return MsgTypeHandToggle
	}
	return ""
}

// Server -> Client messages

// RoomJoinedMessage confirms admission and carries the current roster,
// ordered by join time.
type RoomJoinedMessage struct {
	Type          string          `json:"type"`
	MeetingID     string          `json:"meeting_id"`
	ParticipantID string          `json:"participant_id"`
	Role          ParticipantRole `json:"role"`
	Participants  []Participant   `json:"participants"`
}

// ParticipantJoinedMessage announces a new roster member.
type ParticipantJoinedMessage struct {
	Type        string      `json:"type"`
	MeetingID   string      `json:"meeting_id"`
	Participant Participant `json:"participant"`
}

// Reasons attached to participant-left events.
const (
	LeaveReasonLeave        = "leave"
	LeaveReasonDisconnect   = "disconnect"
	LeaveReasonSlowConsumer = "slow-consumer"
)

// ParticipantLeftMessage announces a roster member leaving.
type ParticipantLeftMessage struct {
	Type          string `json:"type"`
	MeetingID     string `json:"meeting_id"`
	ParticipantID string `json:"participant_id"`
	Reason        string `json:"reason,omitempty"` // "leave", "disconnect", "slow-consumer"
}

// FlagToggleMessage announces a media-flag change for one participant.
type FlagToggleMessage struct {
	Type          string `json:"type"`
	MeetingID     string `json:"meeting_id"`
	ParticipantID string `json:"participant_id"`
	Enabled       bool   `json:"enabled"`
}

// RecordingToggleMessage announces recording being started or stopped.
type RecordingToggleMessage struct {
	Type          string `json:"type"`
	MeetingID     string `json:"meeting_id"`
	ParticipantID string `json:"participant_id"`
	Recording     bool   `json:"recording"`
}

// Reasons attached to transcription-stopped events.
const (
	TranscriptionReasonManual       = "manual"
	TranscriptionReasonUpstream     = "upstream"
	TranscriptionReasonMeetingEnded = "meeting_ended"
)

// TranscriptionStateMessage announces the transcription stream starting
// or stopping for the meeting.
type TranscriptionStateMessage struct {
	Type      string `json:"type"`
	MeetingID string `json:"meeting_id"`
	Reason    string `json:"reason,omitempty"` // "manual", "upstream", "meeting_ended"
}

// ChatMessageOut fans a chat message out to the room.
type ChatMessageOut struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"message_id"`
	MeetingID  string    `json:"meeting_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	Mentions   []string  `json:"mentions,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SignalOut is a relayed negotiation frame. The payload is the sender's,
// unmodified.
type SignalOut struct {
	Type       string          `json:"type"`
	MeetingID  string          `json:"meeting_id"`
	SenderID   string          `json:"sender_id"`
	SignalType string          `json:"signal_type"`
	Payload    json.RawMessage `json:"payload"`
}

// QualityChangedMessage announces a participant's connection quality
// crossing a tier boundary. Emitted only on transitions, not on every
// report; carries the sample that triggered the transition.
type QualityChangedMessage struct {
	ConnectionQuality
	PreviousTier QualityTier `json:"previous_tier"`
}

// PongMessage answers a client ping frame.
type PongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// MeetingEndedMessage announces meeting teardown.
type MeetingEndedMessage struct {
	Type      string    `json:"type"`
	MeetingID string    `json:"meeting_id"`
	Reason    string    `json:"reason"` // "host", "idle"
	EndedAt   time.Time `json:"ended_at"`
}

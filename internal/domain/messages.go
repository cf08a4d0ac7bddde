package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom           = "join-room"
	MsgTypeSignal             = "signal"
	MsgTypeToggleAudio        = "toggle-audio"
	MsgTypeToggleVideo        = "toggle-video"
	MsgTypeToggleScreenShare  = "toggle-screen-share"
	MsgTypeToggleHand         = "toggle-hand"
	MsgTypeStartRecording     = "start-recording"
	MsgTypeStopRecording      = "stop-recording"
	MsgTypeStartTranscription = "start-transcription"
	MsgTypeStopTranscription  = "stop-transcription"
	MsgTypeChatMessage        = "chat-message"
	MsgTypeQualityReport      = "quality-report"
	MsgTypeEndMeeting         = "end-meeting"
	MsgTypeLeaveRoom          = "leave-room"
	MsgTypePing               = "ping"
)

// Error codes surfaced to clients.
const (
	ErrCodeRoomClosed          = "ROOM_CLOSED"
	ErrCodeUnknownPeer         = "UNKNOWN_PEER"
	ErrCodeDuplicateSession    = "DUPLICATE_SESSION"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotInMeeting        = "NOT_IN_MEETING"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinRoomMessage admits the connection into a meeting. Token is optional;
// without it the connection joins as a guest.
type JoinRoomMessage struct {
	Type         string `json:"type"`
	MeetingID    string `json:"meeting_id"`
	Token        string `json:"token,omitempty"`
	DisplayName  string `json:"display_name"`
	AudioEnabled bool   `json:"audio_enabled"`
	VideoEnabled bool   `json:"video_enabled"`
}

// SignalMessage carries a WebRTC negotiation frame to one target peer.
// The payload is opaque to the coordinator and relayed unmodified.
type SignalMessage struct {
	Type       string          `json:"type"`
	TargetID   string          `json:"target_participant_id"`
	SignalType string          `json:"signal_type"` // offer | answer | ice-candidate
	Payload    json.RawMessage `json:"payload"`
}

// Signal types accepted by the relay.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
)

// ToggleMessage carries a single media-flag change.
type ToggleMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// ChatMessageIn is an inbound chat message.
type ChatMessageIn struct {
	Type     string   `json:"type"`
	Body     string   `json:"body"`
	Mentions []string `json:"mentions,omitempty"`
}

// QualityReportMessage carries client-measured network metrics.
type QualityReportMessage struct {
	Type            string  `json:"type"`
	LatencyMs       int     `json:"latency_ms"`
	PacketLossRatio float64 `json:"packet_loss_ratio"`
	JitterMs        int     `json:"jitter_ms"`
	UploadKbps      int     `json:"upload_kbps"`
	DownloadKbps    int     `json:"download_kbps"`
}

// LeaveRoomMessage removes the connection from its meeting.
type LeaveRoomMessage struct {
	Type string `json:"type"`
}

// ErrorMessage is sent when an operation is rejected. A rejected
// join/signal/toggle always surfaces as one of these, never as a
// disconnect.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

package audit

import (
	"github.com/rs/zerolog"

	"github.com/fmonfasani/nexus/pkg/log"
)

// Audited actions.
const (
	ActionMeetingCreate      = "meeting.create"
	ActionMeetingEnd         = "meeting.end"
	ActionRecordingStart     = "recording.start"
	ActionRecordingStop      = "recording.stop"
	ActionTranscriptionStart = "transcription.start"
	ActionTranscriptionStop  = "transcription.stop"
)

// Logger records privileged meeting actions as structured log entries.
// The audit trail shares the process log stream; entries carry an
// "audit" marker so downstream collectors can split them off.
type Logger struct {
	l zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger() *Logger {
	return &Logger{l: log.L().With().Bool("audit", true).Logger()}
}

// Record writes one audit entry. actorID is the authenticated user
// performing the action, empty for system-initiated actions.
func (a *Logger) Record(action, meetingID, actorID string) {
	a.l.Info().
		Str("action", action).
		Str(log.FieldMeetingID, meetingID).
		Str(log.FieldUserID, actorID).
		Msg("audit")
}

package pubsub

import "fmt"

// Channel naming conventions for the meeting coordination system.
const (
	// Transcription worker -> Coordinator channels
	ChannelTranscriptionToCoordinator = "transcription:room:%s:to_coordinator"

	// Coordinator -> Transcription worker channels
	ChannelCoordinatorToTranscription = "coordinator:room:%s:to_transcription"
)

// Event types for Transcription worker -> Coordinator communication.
const (
	EventTranscriptSegment = "transcript_segment"
	EventWorkerShutdown    = "worker_shutdown"
)

// Event types for Coordinator -> Transcription worker communication.
const (
	EventTranscriptionStart = "transcription_start"
	EventTranscriptionStop  = "transcription_stop"
)

// TranscriptionToCoordinatorChannel returns the channel name for worker -> coordinator events.
func TranscriptionToCoordinatorChannel(meetingID string) string {
	return fmt.Sprintf(ChannelTranscriptionToCoordinator, meetingID)
}

// CoordinatorToTranscriptionChannel returns the channel name for coordinator -> worker events.
func CoordinatorToTranscriptionChannel(meetingID string) string {
	return fmt.Sprintf(ChannelCoordinatorToTranscription, meetingID)
}

// Event payloads for Transcription worker -> Coordinator.

// TranscriptSegmentPayload carries one raw transcribed segment for a meeting.
type TranscriptSegmentPayload struct {
	MeetingID       string  `json:"meeting_id"`
	ParticipantHint string  `json:"participant_hint,omitempty"`
	Text            string  `json:"text"`
	StartOffsetMs   int64   `json:"start_offset_ms"`
	EndOffsetMs     int64   `json:"end_offset_ms"`
	Confidence      float64 `json:"confidence"`
	Revision        int     `json:"revision"`
	IsFinal         bool    `json:"is_final"`
}

// WorkerShutdownPayload is sent when the worker stops serving a meeting.
type WorkerShutdownPayload struct {
	MeetingID string `json:"meeting_id"`
	Reason    string `json:"reason"` // "manual", "error"
}

// Event payloads for Coordinator -> Transcription worker.

// TranscriptionStartPayload tells the worker to open an audio subscription.
type TranscriptionStartPayload struct {
	MeetingID string `json:"meeting_id"`
}

// TranscriptionStopPayload tells the worker to close its audio subscription.
type TranscriptionStopPayload struct {
	MeetingID string `json:"meeting_id"`
	Reason    string `json:"reason"` // "manual", "meeting_ended"
}

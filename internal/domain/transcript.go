package domain

// TranscriptionSegment is one unit of transcribed speech fanned out to the
// room. The stream is append-only except for supersession: a partial
// segment may be replaced by a later revision covering the same offsets,
// and consumers must replace rather than append when that happens.
type TranscriptionSegment struct {
	Type          string  `json:"type"`
	MeetingID     string  `json:"meeting_id"`
	SpeakerID     string  `json:"speaker_id,omitempty"` // empty when unresolved
	SpeakerName   string  `json:"speaker_name,omitempty"`
	Text          string  `json:"text"`
	StartOffsetMs int64   `json:"start_offset_ms"`
	EndOffsetMs   int64   `json:"end_offset_ms"`
	Confidence    float64 `json:"confidence"`
	Revision      int     `json:"revision"`
	IsFinal       bool    `json:"is_final"`
}

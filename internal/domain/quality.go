package domain

// QualityTier is a coarse classification of a participant's network health.
type QualityTier string

const (
	QualityGood QualityTier = "good"
	QualityFair QualityTier = "fair"
	QualityPoor QualityTier = "poor"
)

// ConnectionQuality is the coordinator's current view of one participant's
// connection. Recomputed on every sample; no history is kept here.
type ConnectionQuality struct {
	Type            string      `json:"type"`
	MeetingID       string      `json:"meeting_id"`
	ParticipantID   string      `json:"participant_id"`
	Tier            QualityTier `json:"tier"`
	LatencyMs       int         `json:"latency_ms"`
	PacketLossRatio float64     `json:"packet_loss_ratio"`
	JitterMs        int         `json:"jitter_ms"`
	UploadKbps      int         `json:"upload_kbps"`
	DownloadKbps    int         `json:"download_kbps"`
}

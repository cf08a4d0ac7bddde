package quality

import (
	"sync"

	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/pkg/log"
)

// EventBus is the fan-out used for tier-transition announcements.
type EventBus interface {
	Publish(meetingID string, class hub.Class, message interface{}) error
}

// Monitor classifies participant connection stats into quality tiers and
// announces tier transitions to the room. Reports that stay within the
// current tier are absorbed silently.
type Monitor struct {
	mu   sync.Mutex
	last map[domain.Handle]domain.QualityTier
	cfg  config.QualityConfig
	bus  EventBus
}

// New creates a quality monitor with the given thresholds.
func New(cfg config.QualityConfig, bus EventBus) *Monitor {
	return &Monitor{
		last: make(map[domain.Handle]domain.QualityTier),
		cfg:  cfg,
		bus:  bus,
	}
}

// Classify maps raw stats to a tier. Thresholds are checked worst-first so
// a connection exceeding any poor threshold is poor regardless of the
// other metric. A sample sitting exactly on a threshold stays in the
// better tier.
func (m *Monitor) Classify(latencyMs int, lossRatio float64) domain.QualityTier {
	if latencyMs > m.cfg.PoorLatencyMs || lossRatio > m.cfg.PoorLossRatio {
		return domain.QualityPoor
	}
	if latencyMs > m.cfg.FairLatencyMs || lossRatio > m.cfg.FairLossRatio {
		return domain.QualityFair
	}
	return domain.QualityGood
}

// Report ingests a participant's quality report. Returns the classified
// tier. On a tier change, the transition is announced to the whole room
// with the triggering sample attached; the event is droppable, a stale
// quality signal is worthless.
func (m *Monitor) Report(h domain.Handle, report *domain.QualityReportMessage) domain.QualityTier {
	tier := m.Classify(report.LatencyMs, report.PacketLossRatio)

	m.mu.Lock()
	prev, seen := m.last[h]
	m.last[h] = tier
	m.mu.Unlock()

	if seen && prev == tier {
		return tier
	}
	if !seen {
		prev = domain.QualityGood
		if tier == prev {
			return tier
		}
	}

	m.bus.Publish(h.MeetingID, hub.Droppable, &domain.QualityChangedMessage{
		ConnectionQuality: domain.ConnectionQuality{
			Type:            domain.MsgTypeQualityChanged,
			MeetingID:       h.MeetingID,
			ParticipantID:   h.ParticipantID,
			Tier:            tier,
			LatencyMs:       report.LatencyMs,
			PacketLossRatio: report.PacketLossRatio,
			JitterMs:        report.JitterMs,
			UploadKbps:      report.UploadKbps,
			DownloadKbps:    report.DownloadKbps,
		},
		PreviousTier: prev,
	})

	l := log.L()
	l.Debug().
		Str(log.FieldMeetingID, h.MeetingID).
		Str(log.FieldParticipantID, h.ParticipantID).
		Str("tier", string(tier)).
		Str("previous_tier", string(prev)).
		Int("latency_ms", report.LatencyMs).
		Float64("loss_ratio", report.PacketLossRatio).
		Msg("connection quality changed")

	return tier
}

// Forget drops tracked state for a participant. Called when the
// participant leaves its meeting.
func (m *Monitor) Forget(h domain.Handle) {
	m.mu.Lock()
	delete(m.last, h)
	m.mu.Unlock()
}

// ForgetMeeting drops all tracked state for a meeting on teardown.
func (m *Monitor) ForgetMeeting(meetingID string) {
	m.mu.Lock()
	for h := range m.last {
		if h.MeetingID == meetingID {
			delete(m.last, h)
		}
	}
	m.mu.Unlock()
}

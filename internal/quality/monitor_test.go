package quality

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
)

type recordingBus struct {
	mu     sync.Mutex
	events []*domain.QualityChangedMessage
}

func (b *recordingBus) Publish(meetingID string, class hub.Class, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, message.(*domain.QualityChangedMessage))
	return nil
}

func (b *recordingBus) all() []*domain.QualityChangedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*domain.QualityChangedMessage(nil), b.events...)
}

func testThresholds() config.QualityConfig {
	return config.QualityConfig{
		PoorLatencyMs: 300,
		PoorLossRatio: 0.05,
		FairLatencyMs: 150,
		FairLossRatio: 0.01,
	}
}

func report(latencyMs int, loss float64) *domain.QualityReportMessage {
	return &domain.QualityReportMessage{
		Type:            domain.MsgTypeQualityReport,
		LatencyMs:       latencyMs,
		PacketLossRatio: loss,
	}
}

func TestClassifyTiers(t *testing.T) {
	m := New(testThresholds(), &recordingBus{})

	tests := []struct {
		name    string
		latency int
		loss    float64
		want    domain.QualityTier
	}{
		{"clean connection", 40, 0.0, domain.QualityGood},
		{"exactly on fair thresholds", 150, 0.01, domain.QualityGood},
		{"just over fair latency", 151, 0.0, domain.QualityFair},
		{"just over fair loss", 10, 0.011, domain.QualityFair},
		{"exactly on poor thresholds", 300, 0.05, domain.QualityFair},
		{"just over poor latency", 301, 0.0, domain.QualityPoor},
		{"just over poor loss", 10, 0.051, domain.QualityPoor},
		{"poor loss with clean latency", 5, 0.9, domain.QualityPoor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, m.Classify(tt.latency, tt.loss))
		})
	}
}

func TestReportEmitsOnlyOnTierTransition(t *testing.T) {
	// Given a participant with a clean connection
	bus := &recordingBus{}
	m := New(testThresholds(), bus)
	h := domain.Handle{MeetingID: "m1", ParticipantID: "p1"}

	// When the first report is good
	require.Equal(t, domain.QualityGood, m.Report(h, report(40, 0.0)))

	// Then nothing is announced; good is the assumed starting tier
	require.Empty(t, bus.all())

	// When the connection degrades
	require.Equal(t, domain.QualityPoor, m.Report(h, report(500, 0.1)))

	// Then one transition is announced
	events := bus.all()
	require.Len(t, events, 1)
	require.Equal(t, domain.QualityPoor, events[0].Tier)
	require.Equal(t, domain.QualityGood, events[0].PreviousTier)

	// When it stays poor
	m.Report(h, report(480, 0.09))

	// Then nothing new is announced
	require.Len(t, bus.all(), 1)

	// When it recovers
	m.Report(h, report(30, 0.0))

	// Then the recovery is announced too
	events = bus.all()
	require.Len(t, events, 2)
	require.Equal(t, domain.QualityGood, events[1].Tier)
	require.Equal(t, domain.QualityPoor, events[1].PreviousTier)
}

func TestTransitionEventCarriesSample(t *testing.T) {
	// Given a participant degrading with full metrics reported
	bus := &recordingBus{}
	m := New(testThresholds(), bus)
	h := domain.Handle{MeetingID: "m1", ParticipantID: "p1"}

	// When the triggering sample carries jitter and bandwidth
	m.Report(h, &domain.QualityReportMessage{
		Type:            domain.MsgTypeQualityReport,
		LatencyMs:       500,
		PacketLossRatio: 0.1,
		JitterMs:        42,
		UploadKbps:      800,
		DownloadKbps:    2400,
	})

	// Then the announced event echoes every metric of the sample
	events := bus.all()
	require.Len(t, events, 1)
	evt := events[0]
	require.Equal(t, domain.MsgTypeQualityChanged, evt.Type)
	require.Equal(t, 500, evt.LatencyMs)
	require.Equal(t, 0.1, evt.PacketLossRatio)
	require.Equal(t, 42, evt.JitterMs)
	require.Equal(t, 800, evt.UploadKbps)
	require.Equal(t, 2400, evt.DownloadKbps)
}

func TestFirstReportBelowGoodAnnounces(t *testing.T) {
	// Given an untracked participant
	bus := &recordingBus{}
	m := New(testThresholds(), bus)
	h := domain.Handle{MeetingID: "m1", ParticipantID: "p1"}

	// When its very first report is already poor
	m.Report(h, report(500, 0.2))

	// Then the drop from the assumed good tier is announced
	events := bus.all()
	require.Len(t, events, 1)
	require.Equal(t, domain.QualityPoor, events[0].Tier)
	require.Equal(t, domain.QualityGood, events[0].PreviousTier)
}

func TestForgetResetsTracking(t *testing.T) {
	// Given a participant tracked as poor
	bus := &recordingBus{}
	m := New(testThresholds(), bus)
	h := domain.Handle{MeetingID: "m1", ParticipantID: "p1"}
	m.Report(h, report(500, 0.2))

	// When it is forgotten and reports poor again
	m.Forget(h)
	m.Report(h, report(500, 0.2))

	// Then the transition is announced afresh
	require.Len(t, bus.all(), 2)
}

func TestForgetMeetingDropsAllParticipants(t *testing.T) {
	bus := &recordingBus{}
	m := New(testThresholds(), bus)
	m.Report(domain.Handle{MeetingID: "m1", ParticipantID: "p1"}, report(500, 0.2))
	m.Report(domain.Handle{MeetingID: "m1", ParticipantID: "p2"}, report(500, 0.2))
	m.Report(domain.Handle{MeetingID: "m2", ParticipantID: "p3"}, report(500, 0.2))

	m.ForgetMeeting("m1")

	// m1 participants start over, m2 is still tracked
	m.Report(domain.Handle{MeetingID: "m1", ParticipantID: "p1"}, report(500, 0.2))
	m.Report(domain.Handle{MeetingID: "m2", ParticipantID: "p3"}, report(500, 0.2))
	require.Len(t, bus.all(), 4)
}

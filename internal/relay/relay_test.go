package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmonfasani/nexus/internal/domain"
)

type fakeMembership struct {
	members map[string]bool // meetingID/participantID
}

func (f *fakeMembership) IsAdmitted(meetingID, participantID string) bool {
	return f.members[meetingID+"/"+participantID]
}

type recordingSender struct {
	mu   sync.Mutex
	sent []*domain.SignalOut
}

func (s *recordingSender) SendToParticipant(meetingID, participantID string, message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, message.(*domain.SignalOut))
	return nil
}

func newTestRelay(members ...string) (*Relay, *recordingSender) {
	m := &fakeMembership{members: make(map[string]bool)}
	for _, key := range members {
		m.members[key] = true
	}
	sender := &recordingSender{}
	return New(m, sender), sender
}

func TestForwardStampsSenderAndKeepsPayload(t *testing.T) {
	// Given two peers in the same meeting
	r, sender := newTestRelay("m1/a", "m1/b")
	payload := json.RawMessage(`{"sdp":"v=0..."}`)

	// When a forwards an offer to b
	err := r.Forward("m1", "a", &domain.SignalMessage{
		Type:       domain.MsgTypeSignal,
		TargetID:   "b",
		SignalType: domain.SignalOffer,
		Payload:    payload,
	})

	// Then b receives it stamped with a's identity, payload untouched
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	out := sender.sent[0]
	require.Equal(t, "a", out.SenderID)
	require.Equal(t, domain.SignalOffer, out.SignalType)
	require.JSONEq(t, string(payload), string(out.Payload))
}

func TestForwardedFrameTypeIsSignal(t *testing.T) {
	// Given two peers in the same meeting
	r, sender := newTestRelay("m1/a", "m1/b")

	// When a forwards each negotiation kind to b
	for _, kind := range []string{domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate} {
		require.NoError(t, r.Forward("m1", "a", &domain.SignalMessage{
			TargetID:   "b",
			SignalType: kind,
			Payload:    json.RawMessage(`{}`),
		}))
	}

	// Then every delivered frame dispatches as "signal", with the
	// negotiation kind carried in signal_type
	require.Len(t, sender.sent, 3)
	for i, kind := range []string{domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate} {
		require.Equal(t, domain.MsgTypeSignal, sender.sent[i].Type)
		require.Equal(t, kind, sender.sent[i].SignalType)
	}
}

func TestForwardRejectsUnknownTarget(t *testing.T) {
	// Given a peer whose target never joined
	r, sender := newTestRelay("m1/a")

	// When it signals the missing peer
	err := r.Forward("m1", "a", &domain.SignalMessage{TargetID: "ghost", SignalType: domain.SignalOffer})

	// Then the relay refuses and nothing is delivered
	require.ErrorIs(t, err, ErrUnknownPeer)
	require.Empty(t, sender.sent)
}

func TestForwardRejectsCrossMeetingTarget(t *testing.T) {
	// Given peers admitted to different meetings
	r, sender := newTestRelay("m1/a", "m2/b")

	// When a signals b through its own meeting
	err := r.Forward("m1", "a", &domain.SignalMessage{TargetID: "b", SignalType: domain.SignalAnswer})

	// Then the relay treats b as unknown
	require.ErrorIs(t, err, ErrUnknownPeer)
	require.Empty(t, sender.sent)
}

func TestForwardRejectsDepartedSender(t *testing.T) {
	r, sender := newTestRelay("m1/b")
	err := r.Forward("m1", "a", &domain.SignalMessage{TargetID: "b", SignalType: domain.SignalOffer})
	require.ErrorIs(t, err, ErrUnknownPeer)
	require.Empty(t, sender.sent)
}

func TestForwardPreservesPairOrder(t *testing.T) {
	// Given two peers exchanging a negotiation burst
	r, sender := newTestRelay("m1/a", "m1/b")

	// When a sends a sequence of candidates
	const n = 20
	for i := 0; i < n; i++ {
		payload := json.RawMessage(fmt.Sprintf(`{"candidate":%d}`, i))
		require.NoError(t, r.Forward("m1", "a", &domain.SignalMessage{
			TargetID:   "b",
			SignalType: domain.SignalICECandidate,
			Payload:    payload,
		}))
	}

	// Then they arrive in the order they were sent
	require.Len(t, sender.sent, n)
	for i := 0; i < n; i++ {
		require.JSONEq(t, fmt.Sprintf(`{"candidate":%d}`, i), string(sender.sent[i].Payload))
	}
}

package relay

import (
	"errors"
	"fmt"

	"github.com/fmonfasani/nexus/internal/domain"
)

// ErrUnknownPeer means the signal target is not admitted to the sender's
// meeting.
var ErrUnknownPeer = errors.New("target peer not in meeting")

// Membership answers whether a connection is currently admitted to a
// meeting. Backed by the participant registry.
type Membership interface {
	IsAdmitted(meetingID, participantID string) bool
}

// Sender delivers a frame to a single participant's connection.
// At-most-once: delivery to a saturated or departed connection is dropped,
// the peer recovers through its own negotiation restart.
type Sender interface {
	SendToParticipant(meetingID, participantID string, message interface{}) error
}

// Relay forwards WebRTC negotiation frames between two participants of the
// same meeting. Frames between a given ordered pair leave in the order they
// arrived; frames of different pairs are independent.
type Relay struct {
	members Membership
	sender  Sender
}

// New creates a signaling relay.
func New(members Membership, sender Sender) *Relay {
	return &Relay{members: members, sender: sender}
}

// Forward validates both endpoints and passes the signal payload through
// untouched, stamped with the sender's identity.
func (r *Relay) Forward(meetingID, senderID string, msg *domain.SignalMessage) error {
	if !r.members.IsAdmitted(meetingID, senderID) {
		return fmt.Errorf("%w: sender %s", ErrUnknownPeer, senderID)
	}
	if !r.members.IsAdmitted(meetingID, msg.TargetID) {
		return fmt.Errorf("%w: target %s", ErrUnknownPeer, msg.TargetID)
	}

	return r.sender.SendToParticipant(meetingID, msg.TargetID, &domain.SignalOut{
		Type:       domain.MsgTypeSignal,
		MeetingID:  meetingID,
		SenderID:   senderID,
		SignalType: msg.SignalType,
		Payload:    msg.Payload,
	})
}

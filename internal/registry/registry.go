package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/pkg/log"
)

var (
	// ErrDuplicateSession means this connection is already admitted.
	ErrDuplicateSession = errors.New("connection already admitted")
	// ErrNotFound means the participant is not (or no longer) admitted.
	ErrNotFound = errors.New("participant not found")
	// ErrCapacityExceeded means the meeting is at its participant limit.
	ErrCapacityExceeded = errors.New("meeting at capacity")
)

// EventBus is the fan-out contract backing the registry's event emission.
// Every state-changing registry call publishes a corresponding event, so
// the notifications-on-mutation behavior lives here on the interface
// boundary instead of being scattered over call sites.
type EventBus interface {
	Publish(meetingID string, class hub.Class, message interface{}) error
}

// Lifecycle is consulted on admission and notified of occupancy changes.
type Lifecycle interface {
	// IsJoinable returns a non-nil error when the meeting cannot accept
	// new participants. The error is returned to the caller unchanged.
	IsJoinable(meetingID string) error
	// OnAdmit is called after a successful admission.
	OnAdmit(meetingID string)
	// OnEmpty is called when the last participant leaves.
	OnEmpty(meetingID string)
}

// Registry holds the set of admitted participants per meeting. It is the
// single source of truth for room membership: a participant is in here if
// and only if its connection is currently admitted.
type Registry struct {
	mu        sync.RWMutex
	meetings  map[string]*roster
	bus       EventBus
	lifecycle Lifecycle
	capacity  int // 0 means unlimited
}

type roster struct {
	mu           sync.Mutex
	participants map[string]*domain.Participant
}

// New creates a participant registry. capacity bounds the roster of every
// meeting; zero disables the limit.
func New(bus EventBus, lifecycle Lifecycle, capacity int) *Registry {
	return &Registry{
		meetings:  make(map[string]*roster),
		bus:       bus,
		lifecycle: lifecycle,
		capacity:  capacity,
	}
}

// Admit adds a connection to a meeting and announces it to the room.
func (r *Registry) Admit(meetingID, participantID, userID, displayName string, role domain.ParticipantRole, flags domain.MediaFlags) (*domain.Participant, error) {
	if err := r.lifecycle.IsJoinable(meetingID); err != nil {
		return nil, err
	}

	ros := r.rosterFor(meetingID, true)

	ros.mu.Lock()
	if _, exists := ros.participants[participantID]; exists {
		ros.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, participantID)
	}
	if r.capacity > 0 && len(ros.participants) >= r.capacity {
		ros.mu.Unlock()
		return nil, fmt.Errorf("%w: %s holds %d participants", ErrCapacityExceeded, meetingID, r.capacity)
	}

	p := &domain.Participant{
		ID:          participantID,
		UserID:      userID,
		DisplayName: displayName,
		Role:        role,
		Flags:       flags,
		JoinedAt:    time.Now().UTC(),
	}
	ros.participants[participantID] = p
	snapshot := p.Snapshot()
	ros.mu.Unlock()

	r.lifecycle.OnAdmit(meetingID)

	r.bus.Publish(meetingID, hub.Droppable, &domain.ParticipantJoinedMessage{
		Type:        domain.MsgTypeParticipantJoined,
		MeetingID:   meetingID,
		Participant: snapshot,
	})

	l := log.L()
	l.Info().
		Str(log.FieldMeetingID, meetingID).
		Str(log.FieldParticipantID, participantID).
		Str(log.FieldUserID, userID).
		Msg("participant admitted")

	return &snapshot, nil
}

// Remove takes a participant out of its meeting. Idempotent: removing an
// unknown or already-removed handle is a no-op.
func (r *Registry) Remove(h domain.Handle, reason string) {
	ros := r.rosterFor(h.MeetingID, false)
	if ros == nil {
		return
	}

	ros.mu.Lock()
	p, exists := ros.participants[h.ParticipantID]
	if !exists {
		ros.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	p.LeftAt = &now
	delete(ros.participants, h.ParticipantID)
	empty := len(ros.participants) == 0
	ros.mu.Unlock()

	r.bus.Publish(h.MeetingID, hub.Droppable, &domain.ParticipantLeftMessage{
		Type:          domain.MsgTypeParticipantLeft,
		MeetingID:     h.MeetingID,
		ParticipantID: h.ParticipantID,
		Reason:        reason,
	})

	if empty {
		r.lifecycle.OnEmpty(h.MeetingID)
	}

	l := log.L()
	l.Info().
		Str(log.FieldMeetingID, h.MeetingID).
		Str(log.FieldParticipantID, h.ParticipantID).
		Str("reason", reason).
		Msg("participant removed")
}

// ListActive returns the currently-admitted participants of a meeting,
// ordered by join time. New joiners receive this as their roster snapshot.
func (r *Registry) ListActive(meetingID string) []domain.Participant {
	ros := r.rosterFor(meetingID, false)
	if ros == nil {
		return nil
	}

	ros.mu.Lock()
	out := make([]domain.Participant, 0, len(ros.participants))
	for _, p := range ros.participants {
		out = append(out, p.Snapshot())
	}
	ros.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// IsAdmitted reports whether the participant is currently in the meeting.
func (r *Registry) IsAdmitted(meetingID, participantID string) bool {
	ros := r.rosterFor(meetingID, false)
	if ros == nil {
		return false
	}
	ros.mu.Lock()
	defer ros.mu.Unlock()
	_, ok := ros.participants[participantID]
	return ok
}

// UpdateFlags atomically merges a partial flag update into a participant's
// media flags and announces each changed flag to the room. Fails with
// ErrNotFound for a removed participant.
func (r *Registry) UpdateFlags(h domain.Handle, update domain.FlagUpdate) (domain.MediaFlags, error) {
	ros := r.rosterFor(h.MeetingID, false)
	if ros == nil {
		return domain.MediaFlags{}, fmt.Errorf("%w: %s", ErrNotFound, h.ParticipantID)
	}

	type change struct {
		flag    string
		enabled bool
	}

	ros.mu.Lock()
	p, exists := ros.participants[h.ParticipantID]
	if !exists {
		ros.mu.Unlock()
		return domain.MediaFlags{}, fmt.Errorf("%w: %s", ErrNotFound, h.ParticipantID)
	}

	var changes []change
	if update.AudioEnabled != nil && p.Flags.AudioEnabled != *update.AudioEnabled {
		p.Flags.AudioEnabled = *update.AudioEnabled
		changes = append(changes, change{domain.FlagAudio, *update.AudioEnabled})
	}
	if update.VideoEnabled != nil && p.Flags.VideoEnabled != *update.VideoEnabled {
		p.Flags.VideoEnabled = *update.VideoEnabled
		changes = append(changes, change{domain.FlagVideo, *update.VideoEnabled})
	}
	if update.ScreenSharing != nil && p.Flags.ScreenSharing != *update.ScreenSharing {
		p.Flags.ScreenSharing = *update.ScreenSharing
		changes = append(changes, change{domain.FlagScreenShare, *update.ScreenSharing})
	}
	if update.HandRaised != nil && p.Flags.HandRaised != *update.HandRaised {
		p.Flags.HandRaised = *update.HandRaised
		changes = append(changes, change{domain.FlagHand, *update.HandRaised})
	}
	flags := p.Flags
	ros.mu.Unlock()

	for _, ch := range changes {
		r.bus.Publish(h.MeetingID, hub.Droppable, &domain.FlagToggleMessage{
			Type:          domain.ToggleEventType(ch.flag),
			MeetingID:     h.MeetingID,
			ParticipantID: h.ParticipantID,
			Enabled:       ch.enabled,
		})
	}

	return flags, nil
}

// ResolveSpeaker maps a transcription worker's participant hint (a stable
// user ID) to the admitted participant it belongs to. Best-effort: when
// the hint matches zero or several connections the speaker stays
// unresolved rather than guessed.
func (r *Registry) ResolveSpeaker(meetingID, participantHint string) (domain.Participant, bool) {
	if participantHint == "" {
		return domain.Participant{}, false
	}

	ros := r.rosterFor(meetingID, false)
	if ros == nil {
		return domain.Participant{}, false
	}

	ros.mu.Lock()
	defer ros.mu.Unlock()

	var match *domain.Participant
	for _, p := range ros.participants {
		if p.UserID == participantHint || p.ID == participantHint {
			if match != nil {
				return domain.Participant{}, false // ambiguous
			}
			match = p
		}
	}
	if match == nil {
		return domain.Participant{}, false
	}
	return match.Snapshot(), true
}

// Clear drops all membership state for a meeting. Used on room teardown,
// after the meeting-ended event has been published; no per-participant
// events are emitted.
func (r *Registry) Clear(meetingID string) {
	r.mu.Lock()
	delete(r.meetings, meetingID)
	r.mu.Unlock()
}

func (r *Registry) rosterFor(meetingID string, create bool) *roster {
	r.mu.RLock()
	ros, ok := r.meetings[meetingID]
	r.mu.RUnlock()
	if ok || !create {
		return ros
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ros, ok = r.meetings[meetingID]; ok {
		return ros
	}
	ros = &roster{participants: make(map[string]*domain.Participant)}
	r.meetings[meetingID] = ros
	return ros
}

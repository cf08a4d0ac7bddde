package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/pkg/log"
)

// ErrRoomClosed means the meeting has ended and rejects new participants.
var ErrRoomClosed = errors.New("meeting has ended")

// End reasons.
const (
	EndReasonHost = "host"
	EndReasonIdle = "idle"
)

type meetingState struct {
	status     domain.MeetingStatus
	graceTimer *time.Timer
}

// Manager owns the scheduled -> active -> ended progression of meetings.
// Ending is one-way and exactly-once: once a meeting ends it never becomes
// joinable again, and the end callback fires a single time no matter how
// many triggers race (host request, grace timer, duplicate calls).
type Manager struct {
	mu       sync.Mutex
	meetings map[string]*meetingState
	grace    time.Duration
	onEnded  func(meetingID, reason string)
}

// NewManager creates a lifecycle manager. Empty rooms end after grace.
func NewManager(grace time.Duration) *Manager {
	return &Manager{
		meetings: make(map[string]*meetingState),
		grace:    grace,
	}
}

// SetOnEnded installs the teardown callback. It is invoked outside the
// manager's lock, exactly once per meeting, with the end reason.
func (m *Manager) SetOnEnded(fn func(meetingID, reason string)) {
	m.onEnded = fn
}

// Track registers a meeting as scheduled. Idempotent; re-tracking an
// ended meeting does not resurrect it.
func (m *Manager) Track(meetingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meetings[meetingID]; ok {
		return
	}
	m.meetings[meetingID] = &meetingState{status: domain.MeetingStatusScheduled}
}

// Status returns the current status. Unknown meetings report scheduled:
// they spring into existence on first join.
func (m *Manager) Status(meetingID string) domain.MeetingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.meetings[meetingID]; ok {
		return st.status
	}
	return domain.MeetingStatusScheduled
}

// IsJoinable gates admission. Only an ended meeting refuses.
func (m *Manager) IsJoinable(meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.meetings[meetingID]; ok && st.status == domain.MeetingStatusEnded {
		return fmt.Errorf("%w: %s", ErrRoomClosed, meetingID)
	}
	return nil
}

// OnAdmit marks the meeting active and cancels any pending grace timer.
// A join during the grace window keeps the meeting alive.
func (m *Manager) OnAdmit(meetingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.meetings[meetingID]
	if !ok {
		st = &meetingState{}
		m.meetings[meetingID] = st
	}
	if st.status == domain.MeetingStatusEnded {
		return
	}
	st.status = domain.MeetingStatusActive
	if st.graceTimer != nil {
		st.graceTimer.Stop()
		st.graceTimer = nil
		l := log.L()
		l.Debug().Str(log.FieldMeetingID, meetingID).Msg("grace timer cancelled, participant rejoined")
	}
}

// OnEmpty arms the grace timer. If nobody rejoins before it fires, the
// meeting ends with reason "idle".
func (m *Manager) OnEmpty(meetingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.meetings[meetingID]
	if !ok || st.status != domain.MeetingStatusActive {
		return
	}
	if st.graceTimer != nil {
		st.graceTimer.Stop()
	}
	st.graceTimer = time.AfterFunc(m.grace, func() {
		m.End(meetingID, EndReasonIdle)
	})

	l := log.L()
	l.Info().
		Str(log.FieldMeetingID, meetingID).
		Dur("grace_period", m.grace).
		Msg("meeting empty, grace timer armed")
}

// End transitions the meeting to ended. The first caller wins; later calls
// (including a grace timer racing a host request) are no-ops. Returns true
// when this call performed the transition.
func (m *Manager) End(meetingID, reason string) bool {
	m.mu.Lock()
	st, ok := m.meetings[meetingID]
	if !ok {
		st = &meetingState{}
		m.meetings[meetingID] = st
	}
	if st.status == domain.MeetingStatusEnded {
		m.mu.Unlock()
		return false
	}
	st.status = domain.MeetingStatusEnded
	if st.graceTimer != nil {
		st.graceTimer.Stop()
		st.graceTimer = nil
	}
	onEnded := m.onEnded
	m.mu.Unlock()

	l := log.L()
	l.Info().
		Str(log.FieldMeetingID, meetingID).
		Str("reason", reason).
		Msg("meeting ended")

	if onEnded != nil {
		onEnded(meetingID, reason)
	}
	return true
}

// Forget drops an ended meeting's state. Safe to call any time after End.
func (m *Manager) Forget(meetingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.meetings[meetingID]; ok && st.status == domain.MeetingStatusEnded {
		delete(m.meetings, meetingID)
	}
}

// Stop cancels all pending grace timers. Used on service shutdown; no
// meetings are ended.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.meetings {
		if st.graceTimer != nil {
			st.graceTimer.Stop()
			st.graceTimer = nil
		}
	}
}

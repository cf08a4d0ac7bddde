package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmonfasani/nexus/internal/domain"
)

type endRecorder struct {
	mu   sync.Mutex
	ends []string // "meetingID/reason"
}

func (r *endRecorder) record(meetingID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, meetingID+"/"+reason)
}

func (r *endRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ends...)
}

func newTestManager(grace time.Duration) (*Manager, *endRecorder) {
	m := NewManager(grace)
	rec := &endRecorder{}
	m.SetOnEnded(rec.record)
	return m, rec
}

func TestMeetingProgressesToActiveOnAdmit(t *testing.T) {
	// Given a tracked meeting
	m, _ := newTestManager(time.Minute)
	m.Track("m1")
	require.Equal(t, domain.MeetingStatusScheduled, m.Status("m1"))

	// When a participant is admitted
	m.OnAdmit("m1")

	// Then the meeting is active and joinable
	require.Equal(t, domain.MeetingStatusActive, m.Status("m1"))
	require.NoError(t, m.IsJoinable("m1"))
}

func TestEmptyMeetingEndsAfterGracePeriod(t *testing.T) {
	// Given an active meeting
	m, rec := newTestManager(30 * time.Millisecond)
	m.OnAdmit("m1")

	// When the last participant leaves and the grace period passes
	m.OnEmpty("m1")

	// Then the meeting ends with the idle reason
	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "m1/idle", rec.all()[0])
	require.ErrorIs(t, m.IsJoinable("m1"), ErrRoomClosed)
}

func TestRejoinDuringGraceCancelsTimer(t *testing.T) {
	// Given an active meeting that just went empty
	m, rec := newTestManager(30 * time.Millisecond)
	m.OnAdmit("m1")
	m.OnEmpty("m1")

	// When someone rejoins inside the grace window
	m.OnAdmit("m1")

	// Then the meeting survives well past the grace period
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, rec.all())
	require.Equal(t, domain.MeetingStatusActive, m.Status("m1"))
}

func TestEndIsExactlyOnce(t *testing.T) {
	// Given an active meeting
	m, rec := newTestManager(time.Minute)
	m.OnAdmit("m1")

	// When it is ended twice
	first := m.End("m1", EndReasonHost)
	second := m.End("m1", EndReasonHost)

	// Then only the first call performs the transition
	require.True(t, first)
	require.False(t, second)
	require.Equal(t, []string{"m1/host"}, rec.all())
}

func TestHostEndBeatsGraceTimer(t *testing.T) {
	// Given an empty meeting waiting out its grace period
	m, rec := newTestManager(30 * time.Millisecond)
	m.OnAdmit("m1")
	m.OnEmpty("m1")

	// When the host ends it first
	require.True(t, m.End("m1", EndReasonHost))

	// Then the timer never fires a second end
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, []string{"m1/host"}, rec.all())
}

func TestEndedMeetingRejectsAdmission(t *testing.T) {
	// Given an ended meeting
	m, _ := newTestManager(time.Minute)
	m.OnAdmit("m1")
	m.End("m1", EndReasonHost)

	// When admission is checked or attempted again
	err := m.IsJoinable("m1")
	m.OnAdmit("m1")

	// Then it stays closed
	require.ErrorIs(t, err, ErrRoomClosed)
	require.Equal(t, domain.MeetingStatusEnded, m.Status("m1"))
}

func TestOnEmptyForUntrackedMeetingIsNoop(t *testing.T) {
	m, rec := newTestManager(10 * time.Millisecond)
	m.OnEmpty("ghost")
	time.Sleep(40 * time.Millisecond)
	require.Empty(t, rec.all())
}

func TestStopCancelsPendingTimers(t *testing.T) {
	// Given an empty meeting with an armed grace timer
	m, rec := newTestManager(30 * time.Millisecond)
	m.OnAdmit("m1")
	m.OnEmpty("m1")

	// When the manager shuts down
	m.Stop()

	// Then no end fires
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, rec.all())
}

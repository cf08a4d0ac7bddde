package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/internal/lifecycle"
)

type recordingBus struct {
	mu     sync.Mutex
	events []interface{}
}

func (b *recordingBus) Publish(meetingID string, class hub.Class, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, message)
	return nil
}

func (b *recordingBus) all() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interface{}(nil), b.events...)
}

type fakeLifecycle struct {
	mu      sync.Mutex
	joinErr error
	admits  int
	empties []string
}

func (f *fakeLifecycle) IsJoinable(meetingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joinErr
}

func (f *fakeLifecycle) OnAdmit(meetingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admits++
}

func (f *fakeLifecycle) OnEmpty(meetingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.empties = append(f.empties, meetingID)
}

func newTestRegistry(capacity int) (*Registry, *recordingBus, *fakeLifecycle) {
	bus := &recordingBus{}
	lc := &fakeLifecycle{}
	return New(bus, lc, capacity), bus, lc
}

func admit(t *testing.T, r *Registry, meetingID, id, userID, name string) *domain.Participant {
	t.Helper()
	p, err := r.Admit(meetingID, id, userID, name, domain.RoleParticipant, domain.MediaFlags{AudioEnabled: true})
	require.NoError(t, err)
	return p
}

func TestAdmitAnnouncesParticipantJoined(t *testing.T) {
	// Given an empty meeting
	r, bus, lc := newTestRegistry(0)

	// When a participant is admitted
	p := admit(t, r, "m1", "conn-1", "u1", "Alice")

	// Then the roster holds it and the join was announced
	require.Equal(t, "conn-1", p.ID)
	require.True(t, r.IsAdmitted("m1", "conn-1"))
	require.Equal(t, 1, lc.admits)

	events := bus.all()
	require.Len(t, events, 1)
	joined, ok := events[0].(*domain.ParticipantJoinedMessage)
	require.True(t, ok)
	require.Equal(t, domain.MsgTypeParticipantJoined, joined.Type)
	require.Equal(t, "conn-1", joined.Participant.ID)
}

func TestAdmitRejectsDuplicateConnection(t *testing.T) {
	// Given an admitted connection
	r, _, _ := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")

	// When the same connection joins again
	_, err := r.Admit("m1", "conn-1", "u1", "Alice", domain.RoleParticipant, domain.MediaFlags{})

	// Then it is rejected as a duplicate session
	require.ErrorIs(t, err, ErrDuplicateSession)
}

func TestAdmitSameUserTwiceGetsDistinctParticipants(t *testing.T) {
	// Given a user already in the meeting
	r, _, _ := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")

	// When the same user joins over a second connection
	admit(t, r, "m1", "conn-2", "u1", "Alice")

	// Then both connections are distinct roster entries
	roster := r.ListActive("m1")
	require.Len(t, roster, 2)
	require.Equal(t, roster[0].UserID, roster[1].UserID)
	require.NotEqual(t, roster[0].ID, roster[1].ID)
}

func TestAdmitRespectsClosedMeeting(t *testing.T) {
	// Given a lifecycle that refuses admission
	r, _, lc := newTestRegistry(0)
	lc.joinErr = lifecycle.ErrRoomClosed

	// When a participant tries to join
	_, err := r.Admit("m1", "conn-1", "u1", "Alice", domain.RoleParticipant, domain.MediaFlags{})

	// Then the lifecycle verdict is passed through
	require.ErrorIs(t, err, lifecycle.ErrRoomClosed)
	require.False(t, r.IsAdmitted("m1", "conn-1"))
}

func TestAdmitEnforcesCapacity(t *testing.T) {
	// Given a meeting at its capacity limit
	r, _, _ := newTestRegistry(2)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	admit(t, r, "m1", "conn-2", "u2", "Bob")

	// When one more participant tries to join
	_, err := r.Admit("m1", "conn-3", "u3", "Carol", domain.RoleParticipant, domain.MediaFlags{})

	// Then it is rejected and the roster is unchanged
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Len(t, r.ListActive("m1"), 2)
}

func TestListActiveOrdersByJoinTime(t *testing.T) {
	// Given participants joining in sequence
	r, _, _ := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	admit(t, r, "m1", "conn-2", "u2", "Bob")
	admit(t, r, "m1", "conn-3", "u3", "Carol")

	// When the roster is listed
	roster := r.ListActive("m1")

	// Then it comes back in join order
	require.Len(t, roster, 3)
	require.Equal(t, "conn-1", roster[0].ID)
	require.Equal(t, "conn-2", roster[1].ID)
	require.Equal(t, "conn-3", roster[2].ID)
}

func TestRemoveAnnouncesAndIsIdempotent(t *testing.T) {
	// Given two participants
	r, bus, lc := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	admit(t, r, "m1", "conn-2", "u2", "Bob")

	// When one leaves, twice
	h := domain.Handle{MeetingID: "m1", ParticipantID: "conn-1"}
	r.Remove(h, domain.LeaveReasonLeave)
	r.Remove(h, domain.LeaveReasonLeave)

	// Then exactly one participant-left was announced and nobody OnEmpty'd
	var lefts []*domain.ParticipantLeftMessage
	for _, e := range bus.all() {
		if left, ok := e.(*domain.ParticipantLeftMessage); ok {
			lefts = append(lefts, left)
		}
	}
	require.Len(t, lefts, 1)
	require.Equal(t, "conn-1", lefts[0].ParticipantID)
	require.Equal(t, domain.LeaveReasonLeave, lefts[0].Reason)
	require.Empty(t, lc.empties)
}

func TestRemoveLastParticipantSignalsEmpty(t *testing.T) {
	// Given a meeting with one participant
	r, _, lc := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")

	// When it leaves
	r.Remove(domain.Handle{MeetingID: "m1", ParticipantID: "conn-1"}, domain.LeaveReasonDisconnect)

	// Then the lifecycle hears the meeting went empty
	require.Equal(t, []string{"m1"}, lc.empties)
}

func TestUpdateFlagsEmitsOnePerChangedFlag(t *testing.T) {
	// Given an admitted participant with audio on
	r, bus, _ := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	before := len(bus.all())

	// When audio is turned off and screen share on in one update
	off, on := false, true
	h := domain.Handle{MeetingID: "m1", ParticipantID: "conn-1"}
	flags, err := r.UpdateFlags(h, domain.FlagUpdate{AudioEnabled: &off, ScreenSharing: &on})

	// Then the merged state is returned and each change is announced
	require.NoError(t, err)
	require.False(t, flags.AudioEnabled)
	require.True(t, flags.ScreenSharing)

	events := bus.all()[before:]
	require.Len(t, events, 2)
	require.Equal(t, domain.MsgTypeAudioToggle, events[0].(*domain.FlagToggleMessage).Type)
	require.Equal(t, domain.MsgTypeScreenShareToggle, events[1].(*domain.FlagToggleMessage).Type)
}

func TestUpdateFlagsNoopWhenUnchanged(t *testing.T) {
	// Given a participant with audio already on
	r, bus, _ := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	before := len(bus.all())

	// When the same value is set again
	on := true
	_, err := r.UpdateFlags(domain.Handle{MeetingID: "m1", ParticipantID: "conn-1"}, domain.FlagUpdate{AudioEnabled: &on})

	// Then nothing is announced
	require.NoError(t, err)
	require.Len(t, bus.all(), before)
}

func TestUpdateFlagsUnknownParticipant(t *testing.T) {
	r, _, _ := newTestRegistry(0)
	on := true
	_, err := r.UpdateFlags(domain.Handle{MeetingID: "m1", ParticipantID: "ghost"}, domain.FlagUpdate{AudioEnabled: &on})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSpeaker(t *testing.T) {
	// Given one unambiguous user and one user on two connections
	r, _, _ := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	admit(t, r, "m1", "conn-2", "u2", "Bob")
	admit(t, r, "m1", "conn-3", "u2", "Bob")

	// When hints are resolved
	p, ok := r.ResolveSpeaker("m1", "u1")
	require.True(t, ok)
	require.Equal(t, "Alice", p.DisplayName)

	// Then an ambiguous hint stays unresolved
	_, ok = r.ResolveSpeaker("m1", "u2")
	require.False(t, ok)

	// And unknown or empty hints stay unresolved
	_, ok = r.ResolveSpeaker("m1", "nobody")
	require.False(t, ok)
	_, ok = r.ResolveSpeaker("m1", "")
	require.False(t, ok)
}

func TestClearDropsMembershipSilently(t *testing.T) {
	// Given a populated meeting
	r, bus, lc := newTestRegistry(0)
	admit(t, r, "m1", "conn-1", "u1", "Alice")
	before := len(bus.all())

	// When the meeting is cleared
	r.Clear("m1")

	// Then membership is gone with no per-participant events or OnEmpty
	require.False(t, r.IsAdmitted("m1", "conn-1"))
	require.Empty(t, r.ListActive("m1"))
	require.Len(t, bus.all(), before)
	require.Empty(t, lc.empties)
}

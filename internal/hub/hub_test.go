package hub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmonfasani/nexus/internal/config"
)

func testWSConfig(buffer int) config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 65536,
		SendBuffer:     buffer,
	}
}

type testEvent struct {
	Type string `json:"type"`
	Seq  int    `json:"seq"`
}

func drain(t *testing.T, c *Client, n int) []testEvent {
	t.Helper()
	out := make([]testEvent, 0, n)
	for i := 0; i < n; i++ {
		select {
		case raw := <-c.Send:
			var evt testEvent
			require.NoError(t, json.Unmarshal(raw, &evt))
			out = append(out, evt)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	return out
}

func TestPublishTotalOrderPerRoom(t *testing.T) {
	// Given a room with two members
	h := NewHub(testWSConfig(256))
	a := NewClient("a", h, nil, testWSConfig(256))
	b := NewClient("b", h, nil, testWSConfig(256))
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "m1")
	h.JoinRoom(b, "m1")

	// When a burst of events is published to the room
	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, h.Publish("m1", Critical, &testEvent{Type: "evt", Seq: i}))
	}

	// Then both members observe the exact publication order
	gotA := drain(t, a, n)
	gotB := drain(t, b, n)
	for i := 0; i < n; i++ {
		require.Equal(t, i, gotA[i].Seq)
		require.Equal(t, i, gotB[i].Seq)
	}
}

func TestPublishIsolatedBetweenRooms(t *testing.T) {
	// Given members of two different rooms
	h := NewHub(testWSConfig(256))
	a := NewClient("a", h, nil, testWSConfig(256))
	b := NewClient("b", h, nil, testWSConfig(256))
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "m1")
	h.JoinRoom(b, "m2")

	// When an event is published to one room
	require.NoError(t, h.Publish("m1", Droppable, &testEvent{Type: "evt", Seq: 1}))

	// Then only that room's member receives it
	drain(t, a, 1)
	select {
	case raw := <-b.Send:
		t.Fatalf("unexpected event in other room: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDroppableEventSkippedForSaturatedClient(t *testing.T) {
	// Given a member whose send queue is full
	h := NewHub(testWSConfig(1))
	a := NewClient("a", h, nil, testWSConfig(1))
	h.Register(a)
	h.JoinRoom(a, "m1")
	require.NoError(t, h.Publish("m1", Droppable, &testEvent{Type: "evt", Seq: 0}))

	// When a droppable event overflows the queue
	require.NoError(t, h.Publish("m1", Droppable, &testEvent{Type: "evt", Seq: 1}))

	// Then the client stays in the room and only missed that one event
	require.Equal(t, 1, h.RoomSize("m1"))
	got := drain(t, a, 1)
	require.Equal(t, 0, got[0].Seq)
}

func TestCriticalOverflowForceDisconnectsSlowConsumer(t *testing.T) {
	// Given a slow member with a full queue and a healthy member
	h := NewHub(testWSConfig(256))
	slow := NewClient("slow", h, nil, testWSConfig(1))
	fast := NewClient("fast", h, nil, testWSConfig(256))
	disconnected := make(chan string, 1)
	slow.SetDisconnectHandler(func(c *Client) {
		disconnected <- c.DisconnectReason()
	})
	h.Register(slow)
	h.Register(fast)
	h.JoinRoom(slow, "m1")
	h.JoinRoom(fast, "m1")
	require.NoError(t, h.Publish("m1", Critical, &testEvent{Type: "evt", Seq: 0}))

	// When a critical event cannot be queued for the slow member
	require.NoError(t, h.Publish("m1", Critical, &testEvent{Type: "evt", Seq: 1}))

	// Then the slow member is force-disconnected with the drop reason
	select {
	case reason := <-disconnected:
		require.Equal(t, "slow-consumer", reason)
	case <-time.After(time.Second):
		t.Fatal("slow consumer was not disconnected")
	}
	require.Eventually(t, func() bool { return h.RoomSize("m1") == 1 }, time.Second, 10*time.Millisecond)

	// And the healthy member got both events
	got := drain(t, fast, 2)
	require.Equal(t, 0, got[0].Seq)
	require.Equal(t, 1, got[1].Seq)
}

func TestSendToParticipantTargetsOneMember(t *testing.T) {
	// Given two members of the same room
	h := NewHub(testWSConfig(256))
	a := NewClient("a", h, nil, testWSConfig(256))
	b := NewClient("b", h, nil, testWSConfig(256))
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "m1")
	h.JoinRoom(b, "m1")

	// When a direct message is sent to one of them
	require.NoError(t, h.SendToParticipant("m1", "b", &testEvent{Type: "direct", Seq: 7}))

	// Then only the target receives it
	got := drain(t, b, 1)
	require.Equal(t, 7, got[0].Seq)
	select {
	case raw := <-a.Send:
		t.Fatalf("unexpected direct message to a: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseRoomFlushesQueuedEvents(t *testing.T) {
	// Given a member with an event already queued
	h := NewHub(testWSConfig(256))
	a := NewClient("a", h, nil, testWSConfig(256))
	h.Register(a)
	h.JoinRoom(a, "m1")
	require.NoError(t, h.Publish("m1", Critical, &testEvent{Type: "meeting-ended", Seq: 0}))

	// When the room is closed
	h.CloseRoom("m1")

	// Then the queued event is still readable before the channel closes
	raw, ok := <-a.Send
	require.True(t, ok)
	var evt testEvent
	require.NoError(t, json.Unmarshal(raw, &evt))
	require.Equal(t, "meeting-ended", evt.Type)

	_, ok = <-a.Send
	require.False(t, ok, "send channel should be closed after the flush")
	require.Equal(t, 0, h.RoomSize("m1"))
}

func TestUnregisterIsIdempotent(t *testing.T) {
	// Given a registered client
	h := NewHub(testWSConfig(256))
	a := NewClient("a", h, nil, testWSConfig(256))
	h.Register(a)
	h.JoinRoom(a, "m1")

	// When it is unregistered twice
	h.Unregister(a)
	require.NotPanics(t, func() { h.Unregister(a) })

	// Then it is gone from the room
	require.Equal(t, 0, h.RoomSize("m1"))
}

func TestPublishToUnknownRoomIsNoop(t *testing.T) {
	h := NewHub(testWSConfig(256))
	require.NoError(t, h.Publish("nope", Critical, &testEvent{Type: "evt"}))
}

func ExampleHub_Publish() {
	h := NewHub(config.WebSocketConfig{SendBuffer: 8})
	c := NewClient("c1", h, nil, config.WebSocketConfig{SendBuffer: 8})
	h.Register(c)
	h.JoinRoom(c, "m1")
	h.Publish("m1", Droppable, map[string]string{"type": "hello"})
	fmt.Println(string(<-c.Send))
	// Output: {"type":"hello"}
}

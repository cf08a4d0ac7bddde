package hub

import (
	"encoding/json"
	"sync"

	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/pkg/log"
)

// Class determines what happens when a participant's outbound queue is
// full. Droppable events (presence toggles, quality changes) are simply
// skipped for that participant. Critical events (chat, transcription,
// meeting-ended) must not be lost silently: a participant whose queue
// cannot take one is force-disconnected, which protects the rest of the
// room from a single slow consumer.
type Class int

const (
	Droppable Class = iota
	Critical
)

// Hub manages WebSocket connections and per-meeting event fan-out.
//
// Each meeting room has its own lock, and every publication to a room
// enqueues to all of its members while that lock is held. That lock is
// the room's serialization point: all members observe room events in one
// total order, and rooms never contend with each other. Actual delivery
// drains each client's buffered Send channel asynchronously, so a slow
// socket never blocks the room.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]*room
	mu      sync.RWMutex
	config  config.WebSocketConfig
}

type room struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]*room),
		config:  cfg,
	}
}

// Register adds a connected client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")
}

// Unregister removes a client from the hub and all rooms, and closes its
// send queue. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
	}
	var emptied []string
	for meetingID, r := range h.rooms {
		r.mu.Lock()
		delete(r.clients, client.ID)
		if len(r.clients) == 0 {
			emptied = append(emptied, meetingID)
		}
		r.mu.Unlock()
	}
	for _, meetingID := range emptied {
		delete(h.rooms, meetingID)
	}
	h.mu.Unlock()

	if ok {
		close(client.Send)
		l := log.L()
		l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")
	}
}

// JoinRoom adds a client to a meeting room.
func (h *Hub) JoinRoom(client *Client, meetingID string) {
	h.mu.Lock()
	r, ok := h.rooms[meetingID]
	if !ok {
		r = &room{clients: make(map[string]*Client)}
		h.rooms[meetingID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldMeetingID, meetingID).Msg("client joined room")
}

// LeaveRoom removes a client from a meeting room.
func (h *Hub) LeaveRoom(client *Client, meetingID string) {
	h.mu.Lock()
	r, ok := h.rooms[meetingID]
	h.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.clients, client.ID)
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if empty {
		h.mu.Lock()
		if cur, ok := h.rooms[meetingID]; ok && cur == r {
			delete(h.rooms, meetingID)
		}
		h.mu.Unlock()
	}

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldMeetingID, meetingID).Msg("client left room")
}

// Publish fans a message out to every client in the meeting room. All
// clients observe publications to one room in the same order. Returns
// without error when the room does not exist (nobody to deliver to).
func (h *Hub) Publish(meetingID string, class Class, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	r, ok := h.rooms[meetingID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	var overflowed []*Client

	r.mu.Lock()
	for _, client := range r.clients {
		select {
		case client.Send <- data:
		default:
			if class == Critical {
				overflowed = append(overflowed, client)
			}
			// droppable events are skipped for a saturated client
		}
	}
	r.mu.Unlock()

	for _, client := range overflowed {
		go h.dropSlowConsumer(client, meetingID)
	}

	return nil
}

// SendToParticipant delivers a message directly to one room member. Used
// by the signaling relay: delivery is at-most-once, with no buffering
// beyond the client's send queue and no retry. A momentarily unavailable
// target means the frame is dropped and the sender renegotiates.
func (h *Hub) SendToParticipant(meetingID, participantID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	r, ok := h.rooms[meetingID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	client, ok := r.clients[participantID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case client.Send <- data:
	default:
		l := log.L()
		l.Debug().
			Str(log.FieldMeetingID, meetingID).
			Str(log.FieldParticipantID, participantID).
			Msg("dropping signaling frame for saturated client")
	}
	return nil
}

// RoomSize returns the number of connected clients in a meeting room.
func (h *Hub) RoomSize(meetingID string) int {
	h.mu.RLock()
	r, ok := h.rooms[meetingID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CloseRoom disconnects every client in the meeting room and removes the
// room. Events already queued to each client (such as meeting-ended) are
// still flushed by their write pumps before the connections close.
func (h *Hub) CloseRoom(meetingID string) {
	h.mu.Lock()
	r, ok := h.rooms[meetingID]
	if ok {
		delete(h.rooms, meetingID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	members := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		members = append(members, client)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, client := range members {
		h.mu.Lock()
		_, registered := h.clients[client.ID]
		delete(h.clients, client.ID)
		h.mu.Unlock()
		if registered {
			close(client.Send)
		}
		client.closeConn()
	}

	l := log.L()
	l.Info().Str(log.FieldMeetingID, meetingID).Int("members", len(members)).Msg("room closed")
}

// dropSlowConsumer force-disconnects a client whose queue rejected a
// critical event. The disconnect handler runs so the participant is
// removed from the registry like any other disconnect, which in turn
// emits participant-left for the rest of the room.
func (h *Hub) dropSlowConsumer(client *Client, meetingID string) {
	l := log.L()
	l.Warn().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldMeetingID, meetingID).
		Msg("outbound queue overflow, force-disconnecting slow consumer")

	client.setDisconnectReason(domain.LeaveReasonSlowConsumer)
	client.disconnect()
}

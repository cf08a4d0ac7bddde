package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/internal/service"
	"github.com/fmonfasani/nexus/pkg/log"
)

// WSHandler upgrades HTTP requests to coordination WebSocket sessions and
// dispatches inbound frames to the meeting service.
type WSHandler struct {
	hub      *hub.Hub
	service  *service.MeetingService
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WebSocket handler.
func NewWSHandler(h *hub.Hub, svc *service.MeetingService, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin screening happens at the gateway
			},
		},
	}
}

// HandleWebSocket upgrades the connection and starts its pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), h.hub, conn, h.cfg)
	client.SetDisconnectHandler(h.service.HandleDisconnect)
	h.hub.Register(client)

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Msg("websocket session opened")

	go client.WritePump()
	go client.ReadPump(h.dispatch)
}

// dispatch routes one inbound frame by its type field. Malformed frames
// get an error frame back, never a disconnect.
func (h *WSHandler) dispatch(client *hub.Client, raw []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed message"))
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed join-room"))
			return
		}
		h.service.HandleJoin(ctx, client, &msg)

	case domain.MsgTypeSignal:
		var msg domain.SignalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed signal"))
			return
		}
		h.service.HandleSignal(client, &msg)

	case domain.MsgTypeToggleAudio, domain.MsgTypeToggleVideo,
		domain.MsgTypeToggleScreenShare, domain.MsgTypeToggleHand:
		var msg domain.ToggleMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed toggle"))
			return
		}
		h.service.HandleToggle(client, base.Type, msg.Enabled)

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed chat message"))
			return
		}
		h.service.HandleChat(client, &msg)

	case domain.MsgTypeQualityReport:
		var msg domain.QualityReportMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return // quality samples are best-effort
		}
		h.service.HandleQualityReport(client, &msg)

	case domain.MsgTypeStartRecording:
		h.service.HandleRecording(client, true)

	case domain.MsgTypeStopRecording:
		h.service.HandleRecording(client, false)

	case domain.MsgTypeStartTranscription:
		h.service.HandleTranscription(ctx, client, true)

	case domain.MsgTypeStopTranscription:
		h.service.HandleTranscription(ctx, client, false)

	case domain.MsgTypeEndMeeting:
		h.service.HandleEndMeeting(ctx, client)

	case domain.MsgTypeLeaveRoom:
		h.service.HandleLeave(client)

	case domain.MsgTypePing:
		h.service.HandlePing(client)

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fmonfasani/nexus/internal/audit"
	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/internal/lifecycle"
	"github.com/fmonfasani/nexus/internal/quality"
	"github.com/fmonfasani/nexus/internal/registry"
	"github.com/fmonfasani/nexus/internal/relay"
	"github.com/fmonfasani/nexus/internal/repository"
	"github.com/fmonfasani/nexus/internal/transcription"
	"github.com/fmonfasani/nexus/pkg/jwt"
	"github.com/fmonfasani/nexus/pkg/log"
)

// MeetingService ties the coordination subsystems together. It owns the
// join/leave flow and the privileged room controls, and tears meetings
// down when the lifecycle manager says they ended.
type MeetingService struct {
	cfg       *config.Config
	hub       *hub.Hub
	registry  *registry.Registry
	relay     *relay.Relay
	quality   *quality.Monitor
	lifecycle *lifecycle.Manager
	bridge    *transcription.Bridge
	repo      repository.MeetingRepository
	cache     MeetingCacheStore
	audit     *audit.Logger
	tokens    *jwt.Manager

	recordingMu sync.Mutex
	recording   map[string]bool
}

// NewMeetingService creates the meeting service and installs itself as
// the lifecycle manager's end handler.
func NewMeetingService(
	cfg *config.Config,
	h *hub.Hub,
	reg *registry.Registry,
	rel *relay.Relay,
	qual *quality.Monitor,
	lc *lifecycle.Manager,
	bridge *transcription.Bridge,
	repo repository.MeetingRepository,
	meetingCache MeetingCacheStore,
	auditLog *audit.Logger,
	tokens *jwt.Manager,
) *MeetingService {
	s := &MeetingService{
		cfg:       cfg,
		hub:       h,
		registry:  reg,
		relay:     rel,
		quality:   qual,
		lifecycle: lc,
		bridge:    bridge,
		repo:      repo,
		cache:     meetingCache,
		audit:     auditLog,
		tokens:    tokens,
		recording: make(map[string]bool),
	}
	lc.SetOnEnded(s.onMeetingEnded)
	return s
}

// CreateMeeting creates a scheduled meeting owned by the caller.
func (s *MeetingService) CreateMeeting(ctx context.Context, hostID, hostName string, req *domain.CreateMeetingRequest) (*domain.Meeting, error) {
	meeting := &domain.Meeting{
		ID:        uuid.NewString(),
		HostID:    hostID,
		HostName:  hostName,
		Title:     req.Title,
		Status:    domain.MeetingStatusScheduled,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, err
	}

	s.lifecycle.Track(meeting.ID)
	s.cache.Set(ctx, meeting)
	s.audit.Record(audit.ActionMeetingCreate, meeting.ID, hostID)
	return meeting, nil
}

// GetMeeting fetches a meeting, cache first.
func (s *MeetingService) GetMeeting(ctx context.Context, id string) (*domain.Meeting, error) {
	if cached := s.cache.Get(ctx, id); cached != nil {
		return cached, nil
	}
	meeting, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, meeting)
	return meeting, nil
}

// ListMeetings returns a page of meetings.
func (s *MeetingService) ListMeetings(ctx context.Context, req *domain.ListMeetingsRequest) (*domain.ListMeetingsResponse, error) {
	meetings, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	resp := &domain.ListMeetingsResponse{
		Meetings:   make([]domain.MeetingResponse, 0, len(meetings)),
		Total:      int(total),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
	for _, m := range meetings {
		resp.Meetings = append(resp.Meetings, m.ToResponse())
	}
	return resp, nil
}

// ListParticipants returns the live roster of a meeting, join order.
func (s *MeetingService) ListParticipants(ctx context.Context, meetingID string) ([]domain.Participant, error) {
	if _, err := s.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.registry.ListActive(meetingID), nil
}

// EndMeeting ends a meeting on behalf of its host. Idempotent for an
// already-ended meeting.
func (s *MeetingService) EndMeeting(ctx context.Context, meetingID, actorID string) error {
	meeting, err := s.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.HostID != actorID {
		return fmt.Errorf("%w: only the host can end the meeting", ErrForbidden)
	}
	if meeting.Status == domain.MeetingStatusEnded {
		return nil
	}

	if s.lifecycle.End(meetingID, lifecycle.EndReasonHost) {
		s.audit.Record(audit.ActionMeetingEnd, meetingID, actorID)
	}
	return nil
}

// HandleJoin admits a WebSocket connection into a meeting. Joining an
// unknown meeting ID creates it with the joiner as host.
func (s *MeetingService) HandleJoin(ctx context.Context, client *hub.Client, msg *domain.JoinRoomMessage) {
	if client.Session.InMeeting() {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeDuplicateSession, "already in a meeting"))
		return
	}
	if msg.MeetingID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "meeting_id is required"))
		return
	}

	userID, displayName, authenticated, err := s.resolveIdentity(msg)
	if err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "invalid token"))
		return
	}
	if userID == "" {
		userID = "guest-" + client.ID
	}
	if displayName == "" {
		displayName = "Guest"
	}

	meeting, err := s.GetMeeting(ctx, msg.MeetingID)
	if errors.Is(err, repository.ErrMeetingNotFound) {
		meeting, err = s.createOnJoin(ctx, msg.MeetingID, userID, displayName)
	}
	if err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to load meeting"))
		return
	}
	if meeting.Status == domain.MeetingStatusEnded {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeRoomClosed, "meeting has ended"))
		return
	}

	role := domain.RoleGuest
	if authenticated {
		role = domain.RoleParticipant
	}
	if meeting.HostID == userID {
		role = domain.RoleHost
	}

	s.lifecycle.Track(msg.MeetingID)

	flags := domain.MediaFlags{
		AudioEnabled: msg.AudioEnabled,
		VideoEnabled: msg.VideoEnabled,
	}
	if _, err := s.registry.Admit(msg.MeetingID, client.ID, userID, displayName, role, flags); err != nil {
		client.SendMessage(admissionError(err))
		return
	}

	s.hub.JoinRoom(client, msg.MeetingID)
	client.Session.Admit(msg.MeetingID, userID, displayName, role)

	client.SendMessage(&domain.RoomJoinedMessage{
		Type:          domain.MsgTypeRoomJoined,
		MeetingID:     msg.MeetingID,
		ParticipantID: client.ID,
		Role:          role,
		Participants:  s.registry.ListActive(msg.MeetingID),
	})

	s.activateIfNeeded(ctx, meeting)
}

// HandleSignal relays a negotiation frame to its target peer.
func (s *MeetingService) HandleSignal(client *hub.Client, msg *domain.SignalMessage) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInMeeting, "join a meeting first"))
		return
	}

	switch msg.SignalType {
	case domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate:
	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown signal type"))
		return
	}

	if err := s.relay.Forward(meetingID, client.ID, msg); err != nil {
		if errors.Is(err, relay.ErrUnknownPeer) {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnknownPeer, "target is not in this meeting"))
			return
		}
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to relay signal"))
	}
}

// HandleToggle applies a media-flag change and fans the toggle event out.
func (s *MeetingService) HandleToggle(client *hub.Client, msgType string, enabled bool) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInMeeting, "join a meeting first"))
		return
	}

	var update domain.FlagUpdate
	switch msgType {
	case domain.MsgTypeToggleAudio:
		update.AudioEnabled = &enabled
	case domain.MsgTypeToggleVideo:
		update.VideoEnabled = &enabled
	case domain.MsgTypeToggleScreenShare:
		update.ScreenSharing = &enabled
	case domain.MsgTypeToggleHand:
		update.HandRaised = &enabled
	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown toggle"))
		return
	}

	h := domain.Handle{MeetingID: meetingID, ParticipantID: client.ID}
	if _, err := s.registry.UpdateFlags(h, update); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "participant not found"))
	}
}

// HandleChat fans a chat message out to the room, sender included.
func (s *MeetingService) HandleChat(client *hub.Client, msg *domain.ChatMessageIn) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInMeeting, "join a meeting first"))
		return
	}
	if msg.Body == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "empty message"))
		return
	}
	if max := s.cfg.Meeting.MaxChatLength; max > 0 && len(msg.Body) > max {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "message too long"))
		return
	}

	_, displayName, _ := client.Session.Identity()
	s.hub.Publish(meetingID, hub.Critical, &domain.ChatMessageOut{
		Type:       domain.MsgTypeNewMessage,
		MessageID:  uuid.NewString(),
		MeetingID:  meetingID,
		SenderID:   client.ID,
		SenderName: displayName,
		Body:       msg.Body,
		Mentions:   msg.Mentions,
		Timestamp:  time.Now().UTC(),
	})
}

// HandleQualityReport classifies a client's network sample.
func (s *MeetingService) HandleQualityReport(client *hub.Client, msg *domain.QualityReportMessage) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		return
	}
	h := domain.Handle{MeetingID: meetingID, ParticipantID: client.ID}
	s.quality.Report(h, msg)
}

// HandleRecording starts or stops recording. Host only; repeating the
// current state is a no-op.
func (s *MeetingService) HandleRecording(client *hub.Client, start bool) {
	meetingID, ok := s.requireHost(client)
	if !ok {
		return
	}

	s.recordingMu.Lock()
	if s.recording[meetingID] == start {
		s.recordingMu.Unlock()
		return
	}
	s.recording[meetingID] = start
	s.recordingMu.Unlock()

	s.hub.Publish(meetingID, hub.Critical, &domain.RecordingToggleMessage{
		Type:          domain.MsgTypeRecordingToggle,
		MeetingID:     meetingID,
		ParticipantID: client.ID,
		Recording:     start,
	})

	userID, _, _ := client.Session.Identity()
	action := audit.ActionRecordingStop
	if start {
		action = audit.ActionRecordingStart
	}
	s.audit.Record(action, meetingID, userID)
}

// HandleTranscription starts or stops the transcription stream. Host only.
func (s *MeetingService) HandleTranscription(ctx context.Context, client *hub.Client, start bool) {
	meetingID, ok := s.requireHost(client)
	if !ok {
		return
	}
	userID, _, _ := client.Session.Identity()

	if !start {
		s.bridge.Stop(ctx, meetingID, domain.TranscriptionReasonManual)
		s.audit.Record(audit.ActionTranscriptionStop, meetingID, userID)
		return
	}

	err := s.bridge.Start(ctx, meetingID)
	switch {
	case err == nil:
		s.audit.Record(audit.ActionTranscriptionStart, meetingID, userID)
	case errors.Is(err, transcription.ErrAlreadyStreaming):
		// repeat start is a no-op
	case errors.Is(err, transcription.ErrUpstreamUnavailable):
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUpstreamUnavailable, "transcription service unavailable"))
	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to start transcription"))
	}
}

// HandleEndMeeting ends the meeting over WebSocket. Host only.
func (s *MeetingService) HandleEndMeeting(ctx context.Context, client *hub.Client) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInMeeting, "join a meeting first"))
		return
	}
	userID, _, _ := client.Session.Identity()

	if err := s.EndMeeting(ctx, meetingID, userID); err != nil {
		if errors.Is(err, ErrForbidden) {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the host can end the meeting"))
			return
		}
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to end meeting"))
	}
}

// HandleLeave removes the connection from its meeting, keeping the socket
// open for a later join.
func (s *MeetingService) HandleLeave(client *hub.Client) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		return
	}

	h := domain.Handle{MeetingID: meetingID, ParticipantID: client.ID}
	s.registry.Remove(h, domain.LeaveReasonLeave)
	s.quality.Forget(h)
	s.hub.LeaveRoom(client, meetingID)
	client.Session.Leave()
}

// HandlePing answers a client liveness probe.
func (s *MeetingService) HandlePing(client *hub.Client) {
	client.SendMessage(&domain.PongMessage{
		Type:      domain.MsgTypePong,
		Timestamp: time.Now().UTC(),
	})
}

// HandleDisconnect is the hub's disconnect handler: it removes the
// participant like a leave, with the actual disconnect reason.
func (s *MeetingService) HandleDisconnect(client *hub.Client) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		return
	}

	h := domain.Handle{MeetingID: meetingID, ParticipantID: client.ID}
	s.registry.Remove(h, client.DisconnectReason())
	s.quality.Forget(h)
	client.Session.Leave()
}

// Stop shuts the coordination loops down. Meetings are left intact so a
// restarted coordinator can pick them up from storage.
func (s *MeetingService) Stop(ctx context.Context) {
	s.bridge.StopAll(ctx, domain.TranscriptionReasonManual)
	s.lifecycle.Stop()
}

func (s *MeetingService) resolveIdentity(msg *domain.JoinRoomMessage) (userID, displayName string, authenticated bool, err error) {
	if msg.Token == "" {
		return "", msg.DisplayName, false, nil
	}
	claims, err := s.tokens.ValidateToken(msg.Token)
	if err != nil {
		return "", "", false, err
	}
	displayName = msg.DisplayName
	if displayName == "" {
		displayName = claims.Username
	}
	return claims.UserID, displayName, true, nil
}

func (s *MeetingService) createOnJoin(ctx context.Context, meetingID, hostID, hostName string) (*domain.Meeting, error) {
	meeting := &domain.Meeting{
		ID:        meetingID,
		HostID:    hostID,
		HostName:  hostName,
		Title:     "Meeting " + meetingID,
		Status:    domain.MeetingStatusScheduled,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, err
	}
	s.cache.Set(ctx, meeting)
	s.audit.Record(audit.ActionMeetingCreate, meetingID, hostID)
	return meeting, nil
}

func (s *MeetingService) activateIfNeeded(ctx context.Context, meeting *domain.Meeting) {
	if meeting.Status != domain.MeetingStatusScheduled {
		return
	}
	now := time.Now().UTC()
	if err := s.repo.SetStatus(ctx, meeting.ID, domain.MeetingStatusActive, &now); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldMeetingID, meeting.ID).Msg("failed to mark meeting active")
		return
	}
	meeting.Status = domain.MeetingStatusActive
	meeting.StartedAt = &now
	s.cache.Invalidate(ctx, meeting.ID)
}

// requireHost resolves the client's meeting and checks its role. Sends
// the appropriate error frame itself on failure.
func (s *MeetingService) requireHost(client *hub.Client) (string, bool) {
	meetingID := client.Session.CurrentMeeting()
	if meetingID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInMeeting, "join a meeting first"))
		return "", false
	}
	_, _, role := client.Session.Identity()
	if role != domain.RoleHost {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "host role required"))
		return "", false
	}
	return meetingID, true
}

// onMeetingEnded is the lifecycle teardown path. It runs exactly once per
// meeting, for both host-initiated and idle-timeout ends.
func (s *MeetingService) onMeetingEnded(meetingID, reason string) {
	ctx := context.Background()
	now := time.Now().UTC()

	// Stop transcription before the final event so its stopped frame is
	// still delivered inside the room.
	s.bridge.Stop(ctx, meetingID, domain.TranscriptionReasonMeetingEnded)

	s.hub.Publish(meetingID, hub.Critical, &domain.MeetingEndedMessage{
		Type:      domain.MsgTypeMeetingEnded,
		MeetingID: meetingID,
		Reason:    reason,
		EndedAt:   now,
	})

	// Clear membership before closing sockets so the disconnect handlers
	// see an empty roster and emit nothing.
	s.registry.Clear(meetingID)
	s.hub.CloseRoom(meetingID)
	s.quality.ForgetMeeting(meetingID)

	s.recordingMu.Lock()
	delete(s.recording, meetingID)
	s.recordingMu.Unlock()

	if err := s.repo.End(ctx, meetingID, now); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldMeetingID, meetingID).Msg("failed to persist meeting end")
	}
	s.cache.Invalidate(ctx, meetingID)

	if reason == lifecycle.EndReasonIdle {
		s.audit.Record(audit.ActionMeetingEnd, meetingID, "")
	}
}

func admissionError(err error) *domain.ErrorMessage {
	switch {
	case errors.Is(err, lifecycle.ErrRoomClosed):
		return domain.NewErrorMessage(domain.ErrCodeRoomClosed, "meeting has ended")
	case errors.Is(err, registry.ErrDuplicateSession):
		return domain.NewErrorMessage(domain.ErrCodeDuplicateSession, "already in this meeting")
	case errors.Is(err, registry.ErrCapacityExceeded):
		return domain.NewErrorMessage(domain.ErrCodeCapacityExceeded, "meeting is full")
	}
	return domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to join meeting")
}

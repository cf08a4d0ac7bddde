package transcription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/pkg/log"
	"github.com/fmonfasani/nexus/pkg/pubsub"
)

var (
	// ErrAlreadyStreaming means transcription is already running for the meeting.
	ErrAlreadyStreaming = errors.New("transcription already streaming")
	// ErrUpstreamUnavailable means the transcription worker cannot be reached.
	ErrUpstreamUnavailable = errors.New("transcription upstream unavailable")
)

// EventBus is the in-room fan-out for transcription events.
type EventBus interface {
	Publish(meetingID string, class hub.Class, message interface{}) error
}

// SpeakerResolver maps an upstream participant hint to an admitted
// participant. Backed by the participant registry.
type SpeakerResolver interface {
	ResolveSpeaker(meetingID, participantHint string) (domain.Participant, bool)
}

type offsetRange struct {
	start, end int64
}

type stream struct {
	cancel    context.CancelFunc
	revisions map[offsetRange]int
	done      chan struct{}
}

// Bridge connects meetings to the external transcription pipeline. Per
// streaming meeting it holds one upstream subscription, converts raw
// worker segments into room events, and enforces revision ordering per
// offset range so a late partial can never displace a newer one.
type Bridge struct {
	mu      sync.Mutex
	streams map[string]*stream
	ps      pubsub.PubSub
	bus     EventBus
	speaker SpeakerResolver
}

// NewBridge creates a transcription bridge.
func NewBridge(ps pubsub.PubSub, bus EventBus, speaker SpeakerResolver) *Bridge {
	return &Bridge{
		streams: make(map[string]*stream),
		ps:      ps,
		bus:     bus,
		speaker: speaker,
	}
}

// Start opens the upstream subscription for a meeting, signals the worker
// to begin, and announces transcription-started to the room.
func (b *Bridge) Start(ctx context.Context, meetingID string) error {
	b.mu.Lock()
	if _, ok := b.streams[meetingID]; ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStreaming, meetingID)
	}
	b.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := b.ps.Subscribe(streamCtx, pubsub.TranscriptionToCoordinatorChannel(meetingID))
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	startEvt, err := pubsub.NewEvent(pubsub.EventTranscriptionStart, meetingID, &pubsub.TranscriptionStartPayload{
		MeetingID: meetingID,
	})
	if err != nil {
		cancel()
		return err
	}
	if err := b.ps.Publish(ctx, pubsub.CoordinatorToTranscriptionChannel(meetingID), startEvt); err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s := &stream{
		cancel:    cancel,
		revisions: make(map[offsetRange]int),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	if _, ok := b.streams[meetingID]; ok {
		b.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s", ErrAlreadyStreaming, meetingID)
	}
	b.streams[meetingID] = s
	b.mu.Unlock()

	go b.consume(meetingID, s, events)

	b.bus.Publish(meetingID, hub.Critical, &domain.TranscriptionStateMessage{
		Type:      domain.MsgTypeTranscriptionStarted,
		MeetingID: meetingID,
	})

	l := log.L()
	l.Info().Str(log.FieldMeetingID, meetingID).Msg("transcription started")
	return nil
}

// Stop tears the stream down and announces transcription-stopped with the
// given reason. Idempotent: stopping a meeting that is not streaming is a
// no-op.
func (b *Bridge) Stop(ctx context.Context, meetingID, reason string) {
	b.mu.Lock()
	s, ok := b.streams[meetingID]
	if ok {
		delete(b.streams, meetingID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	s.cancel()

	stopEvt, err := pubsub.NewEvent(pubsub.EventTranscriptionStop, meetingID, &pubsub.TranscriptionStopPayload{
		MeetingID: meetingID,
		Reason:    reason,
	})
	if err == nil {
		if perr := b.ps.Publish(ctx, pubsub.CoordinatorToTranscriptionChannel(meetingID), stopEvt); perr != nil {
			l := log.L()
			l.Warn().Err(perr).Str(log.FieldMeetingID, meetingID).Msg("failed to signal transcription worker stop")
		}
	}

	b.bus.Publish(meetingID, hub.Critical, &domain.TranscriptionStateMessage{
		Type:      domain.MsgTypeTranscriptionStopped,
		MeetingID: meetingID,
		Reason:    reason,
	})

	l := log.L()
	l.Info().
		Str(log.FieldMeetingID, meetingID).
		Str("reason", reason).
		Msg("transcription stopped")
}

// IsStreaming reports whether a meeting has a live transcription stream.
func (b *Bridge) IsStreaming(meetingID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.streams[meetingID]
	return ok
}

// StopAll tears down every stream. Used on service shutdown.
func (b *Bridge) StopAll(ctx context.Context, reason string) {
	b.mu.Lock()
	ids := make([]string, 0, len(b.streams))
	for id := range b.streams {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.Stop(ctx, id, reason)
	}
}

func (b *Bridge) consume(meetingID string, s *stream, events <-chan *pubsub.Event) {
	defer close(s.done)

	l := log.L()
	for evt := range events {
		switch evt.Type {
		case pubsub.EventTranscriptSegment:
			var seg pubsub.TranscriptSegmentPayload
			if err := evt.UnmarshalPayload(&seg); err != nil {
				l.Warn().Err(err).Str(log.FieldMeetingID, meetingID).Msg("malformed transcript segment, skipping")
				continue
			}
			b.ingest(meetingID, s, &seg)
		case pubsub.EventWorkerShutdown:
			l.Info().Str(log.FieldMeetingID, meetingID).Msg("transcription worker announced shutdown")
			b.Stop(context.Background(), meetingID, domain.TranscriptionReasonUpstream)
			return
		default:
			l.Debug().
				Str(log.FieldMeetingID, meetingID).
				Str(log.FieldEventType, evt.Type).
				Msg("ignoring unknown upstream event")
		}
	}

	// Upstream channel closed without a shutdown event: the worker or the
	// broker went away. Surface it to the room as an upstream stop, unless
	// this stream was already replaced or torn down.
	b.mu.Lock()
	current := b.streams[meetingID] == s
	b.mu.Unlock()
	if current {
		l.Warn().Str(log.FieldMeetingID, meetingID).Msg("transcription upstream channel closed")
		b.Stop(context.Background(), meetingID, domain.TranscriptionReasonUpstream)
	}
}

// ingest validates one segment, resolves its speaker, and fans it out.
// Finality is one-way per offset range: a final segment permanently
// closes the range, and partials are superseded strictly by revision.
func (b *Bridge) ingest(meetingID string, s *stream, seg *pubsub.TranscriptSegmentPayload) {
	l := log.L()

	if seg.Text == "" || seg.EndOffsetMs < seg.StartOffsetMs {
		l.Warn().
			Str(log.FieldMeetingID, meetingID).
			Int64("start_offset_ms", seg.StartOffsetMs).
			Int64("end_offset_ms", seg.EndOffsetMs).
			Msg("invalid transcript segment, skipping")
		return
	}

	rng := offsetRange{start: seg.StartOffsetMs, end: seg.EndOffsetMs}

	b.mu.Lock()
	prev, seen := s.revisions[rng]
	if seen && seg.Revision <= prev {
		b.mu.Unlock()
		l.Warn().
			Str(log.FieldMeetingID, meetingID).
			Int("revision", seg.Revision).
			Int("current_revision", prev).
			Msg("stale transcript revision, skipping")
		return
	}
	s.revisions[rng] = seg.Revision
	if seg.IsFinal {
		// A final revision caps the range; sentinel keeps later partials out.
		s.revisions[rng] = seg.Revision | finalBit
	}
	b.mu.Unlock()

	out := &domain.TranscriptionSegment{
		Type:          domain.MsgTypeTranscriptionSegment,
		MeetingID:     meetingID,
		Text:          seg.Text,
		StartOffsetMs: seg.StartOffsetMs,
		EndOffsetMs:   seg.EndOffsetMs,
		Confidence:    seg.Confidence,
		Revision:      seg.Revision,
		IsFinal:       seg.IsFinal,
	}
	if p, ok := b.speaker.ResolveSpeaker(meetingID, seg.ParticipantHint); ok {
		out.SpeakerID = p.ID
		out.SpeakerName = p.DisplayName
	}

	b.bus.Publish(meetingID, hub.Critical, out)
}

// finalBit marks a range as closed by a final segment. Revisions are small
// positive integers, so a high bit never collides with a real revision.
const finalBit = 1 << 30

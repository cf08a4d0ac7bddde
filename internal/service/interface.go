package service

import (
	"context"
	"errors"

	"github.com/fmonfasani/nexus/internal/domain"
)

// ErrForbidden means the actor lacks permission for the operation.
var ErrForbidden = errors.New("operation not permitted")

// MeetingCacheStore is the read-through cache in front of the meeting
// repository. Implementations must swallow their own failures; a broken
// cache degrades to repository reads.
type MeetingCacheStore interface {
	Get(ctx context.Context, id string) *domain.Meeting
	Set(ctx context.Context, meeting *domain.Meeting)
	Invalidate(ctx context.Context, id string)
}

// MeetingAdmin is the REST-facing meeting management surface.
type MeetingAdmin interface {
	CreateMeeting(ctx context.Context, hostID, hostName string, req *domain.CreateMeetingRequest) (*domain.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*domain.Meeting, error)
	ListMeetings(ctx context.Context, req *domain.ListMeetingsRequest) (*domain.ListMeetingsResponse, error)
	ListParticipants(ctx context.Context, meetingID string) ([]domain.Participant, error)
	EndMeeting(ctx context.Context, meetingID, actorID string) error
}

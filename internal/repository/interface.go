package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fmonfasani/nexus/internal/domain"
)

// ErrMeetingNotFound means no meeting exists for the given ID.
var ErrMeetingNotFound = errors.New("meeting not found")

// MeetingRepository persists meeting records.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *domain.Meeting) error
	GetByID(ctx context.Context, id string) (*domain.Meeting, error)
	List(ctx context.Context, req *domain.ListMeetingsRequest) ([]*domain.Meeting, int64, error)
	SetStatus(ctx context.Context, id string, status domain.MeetingStatus, startedAt *time.Time) error
	End(ctx context.Context, id string, endedAt time.Time) error
}

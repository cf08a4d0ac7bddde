package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fmonfasani/nexus/internal/domain"
)

// GormMeetingRepository implements MeetingRepository using GORM.
type GormMeetingRepository struct {
	db *gorm.DB
}

// NewGormMeetingRepository creates a new GORM-backed meeting repository.
func NewGormMeetingRepository(db *gorm.DB) *GormMeetingRepository {
	return &GormMeetingRepository{db: db}
}

// Create persists a new meeting.
func (r *GormMeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	model := domain.MeetingToModel(meeting)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// GetByID fetches a meeting by its ID.
func (r *GormMeetingRepository) GetByID(ctx context.Context, id string) (*domain.Meeting, error) {
	var model domain.MeetingModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, id)
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return model.ToDomain(), nil
}

// List returns meetings matching the request, newest first.
func (r *GormMeetingRepository) List(ctx context.Context, req *domain.ListMeetingsRequest) ([]*domain.Meeting, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.MeetingModel{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count meetings: %w", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var models []domain.MeetingModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list meetings: %w", err)
	}

	meetings := make([]*domain.Meeting, 0, len(models))
	for i := range models {
		meetings = append(meetings, models[i].ToDomain())
	}
	return meetings, total, nil
}

// SetStatus updates a meeting's status, optionally stamping its start time.
func (r *GormMeetingRepository) SetStatus(ctx context.Context, id string, status domain.MeetingStatus, startedAt *time.Time) error {
	updates := map[string]interface{}{"status": string(status)}
	if startedAt != nil {
		updates["started_at"] = *startedAt
	}

	result := r.db.WithContext(ctx).
		Model(&domain.MeetingModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update meeting status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrMeetingNotFound, id)
	}
	return nil
}

// End marks a meeting ended. Idempotent at the storage level: an already
// ended meeting keeps its original end time.
func (r *GormMeetingRepository) End(ctx context.Context, id string, endedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.MeetingModel{}).
		Where("id = ? AND status <> ?", id, string(domain.MeetingStatusEnded)).
		Updates(map[string]interface{}{
			"status":   string(domain.MeetingStatusEnded),
			"ended_at": endedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to end meeting: %w", result.Error)
	}
	return nil
}

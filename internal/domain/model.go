package domain

import (
	"time"

	"gorm.io/gorm"
)

// MeetingModel is the GORM model for the meetings table.
type MeetingModel struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	HostID    string         `gorm:"type:varchar(36);index;not null"`
	HostName  string         `gorm:"type:varchar(50);not null"`
	Title     string         `gorm:"type:varchar(200);not null"`
	Status    string         `gorm:"type:varchar(20);index;not null;default:'SCHEDULED'"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	StartedAt *time.Time
	EndedAt   *time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for MeetingModel.
func (MeetingModel) TableName() string {
	return "meetings"
}

// ToDomain converts MeetingModel to domain Meeting.
func (m *MeetingModel) ToDomain() *Meeting {
	return &Meeting{
		ID:        m.ID,
		HostID:    m.HostID,
		HostName:  m.HostName,
		Title:     m.Title,
		Status:    MeetingStatus(m.Status),
		CreatedAt: m.CreatedAt,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

// MeetingToModel converts domain Meeting to MeetingModel.
func MeetingToModel(m *Meeting) *MeetingModel {
	return &MeetingModel{
		ID:        m.ID,
		HostID:    m.HostID,
		HostName:  m.HostName,
		Title:     m.Title,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

package domain

import (
	"time"
)

// MeetingStatus represents meeting status.
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "SCHEDULED"
	MeetingStatusActive    MeetingStatus = "ACTIVE"
	MeetingStatusEnded     MeetingStatus = "ENDED"
)

// Meeting represents one conferencing session. All coordination state is
// partitioned per meeting; this record is the metadata the REST surface
// manages and the coordinator trusts.
type Meeting struct {
	ID        string        `json:"id"`
	HostID    string        `json:"host_id"`
	HostName  string        `json:"host_name"`
	Title     string        `json:"title"`
	Status    MeetingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// CreateMeetingRequest represents a create meeting request.
type CreateMeetingRequest struct {
	Title string `json:"title" binding:"required,min=1,max=200"`
}

// ListMeetingsRequest represents a list meetings request.
type ListMeetingsRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
}

// MeetingResponse represents a meeting in API responses.
type MeetingResponse struct {
	ID        string        `json:"id"`
	HostID    string        `json:"host_id"`
	HostName  string        `json:"host_name"`
	Title     string        `json:"title"`
	Status    MeetingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// ListMeetingsResponse represents a paginated list response.
type ListMeetingsResponse struct {
	Meetings   []MeetingResponse `json:"meetings"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// ToResponse converts Meeting to MeetingResponse.
func (m *Meeting) ToResponse() MeetingResponse {
	return MeetingResponse{
		ID:        m.ID,
		HostID:    m.HostID,
		HostName:  m.HostName,
		Title:     m.Title,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

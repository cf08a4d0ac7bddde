package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/repository"
	"github.com/fmonfasani/nexus/internal/service"
	"github.com/fmonfasani/nexus/pkg/middleware"
	"github.com/fmonfasani/nexus/pkg/response"
)

// HTTPHandler serves the REST meeting management surface.
type HTTPHandler struct {
	service service.MeetingAdmin
}

// NewHTTPHandler creates an HTTP handler.
func NewHTTPHandler(svc service.MeetingAdmin) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// RegisterRoutes mounts the meeting routes on a router group.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	meetings := rg.Group("/meetings")
	{
		meetings.GET("", h.ListMeetings)
		meetings.GET("/:id", h.GetMeeting)
		meetings.GET("/:id/participants", h.ListParticipants)

		authed := meetings.Group("")
		authed.Use(auth.RequireAuth())
		{
			authed.POST("", h.CreateMeeting)
			authed.POST("/:id/end", h.EndMeeting)
		}
	}
}

// CreateMeeting handles POST /meetings.
func (h *HTTPHandler) CreateMeeting(c *gin.Context) {
	var req domain.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	meeting, err := h.service.CreateMeeting(c.Request.Context(), middleware.GetUserID(c), middleware.GetUsername(c), &req)
	if err != nil {
		response.InternalError(c, "failed to create meeting")
		return
	}
	response.Created(c, meeting.ToResponse())
}

// GetMeeting handles GET /meetings/:id.
func (h *HTTPHandler) GetMeeting(c *gin.Context) {
	meeting, err := h.service.GetMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			response.NotFound(c, "meeting not found")
			return
		}
		response.InternalError(c, "failed to get meeting")
		return
	}
	response.Success(c, meeting.ToResponse())
}

// ListMeetings handles GET /meetings.
func (h *HTTPHandler) ListMeetings(c *gin.Context) {
	var req domain.ListMeetingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	resp, err := h.service.ListMeetings(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c, "failed to list meetings")
		return
	}
	response.Success(c, resp)
}

// ListParticipants handles GET /meetings/:id/participants.
func (h *HTTPHandler) ListParticipants(c *gin.Context) {
	participants, err := h.service.ListParticipants(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			response.NotFound(c, "meeting not found")
			return
		}
		response.InternalError(c, "failed to list participants")
		return
	}
	response.Success(c, gin.H{"participants": participants, "count": len(participants)})
}

// EndMeeting handles POST /meetings/:id/end.
func (h *HTTPHandler) EndMeeting(c *gin.Context) {
	err := h.service.EndMeeting(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMeetingNotFound):
			response.NotFound(c, "meeting not found")
		case errors.Is(err, service.ErrForbidden):
			response.Forbidden(c, "only the host can end the meeting")
		default:
			response.InternalError(c, "failed to end meeting")
		}
		return
	}
	response.Success(c, gin.H{"ended": true})
}

package meeting

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	meetingService "github.com/usetoolieproject/coachly-sub000/internal/service/meeting"
	"github.com/usetoolieproject/coachly-sub000/pkg/response"
)

// Handler handles meeting HTTP requests
type Handler struct {
	meetingService *meetingService.Service
}

// NewHandler creates a new meeting handler
func NewHandler(svc *meetingService.Service) *Handler {
	return &Handler{
		meetingService: svc,
	}
}

// requesterID extracts the authenticated user from the gin context
func requesterID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, false
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}

// meetingID parses the :id path parameter
func meetingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid meeting ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateMeetingRequest represents meeting creation request
type CreateMeetingRequest struct {
	Title           string    `json:"title" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1"`
	InvitedUserIDs  []string  `json:"invited_user_ids"`
}

// CreateMeeting schedules a new meeting
// POST /v1/meetings
func (h *Handler) CreateMeeting(c *gin.Context) {
	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	hostID, ok := requesterID(c)
	if !ok {
		return
	}

	invitees := make([]uuid.UUID, len(req.InvitedUserIDs))
	for i, idStr := range req.InvitedUserIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			response.ValidationError(c, "Invalid invitee ID: "+idStr)
			return
		}
		invitees[i] = id
	}

	meeting, err := h.meetingService.CreateMeeting(c.Request.Context(), &meetingService.CreateMeetingInput{
		HostID:          hostID,
		Title:           req.Title,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		InvitedUserIDs:  invitees,
	})
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, meeting)
}

// ListMeetings lists meetings the requester hosts or is invited to
// GET /v1/meetings?status=
func (h *Handler) ListMeetings(c *gin.Context) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	meetings, err := h.meetingService.ListMeetings(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, meetings)
}

// GetMeeting retrieves one meeting with its participants
// GET /v1/meetings/:id
func (h *Handler) GetMeeting(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	detail, err := h.meetingService.GetMeeting(c.Request.Context(), id, userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// UpdateMeetingRequest represents meeting update request
type UpdateMeetingRequest struct {
	Title           string    `json:"title" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1"`
}

// UpdateMeeting reschedules or retitles a meeting
// PUT /v1/meetings/:id
func (h *Handler) UpdateMeeting(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	var req UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	meeting, err := h.meetingService.UpdateMeeting(c.Request.Context(), id, userID, &meetingService.UpdateMeetingInput{
		Title:           req.Title,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, meeting)
}

// CancelMeeting cancels a meeting
// POST /v1/meetings/:id/cancel
func (h *Handler) CancelMeeting(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	if err := h.meetingService.CancelMeeting(c.Request.Context(), id, userID); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message":    "Meeting cancelled",
		"meeting_id": id,
	})
}

// DeleteMeeting removes a meeting and its participant records
// DELETE /v1/meetings/:id
func (h *Handler) DeleteMeeting(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	if err := h.meetingService.DeleteMeeting(c.Request.Context(), id, userID); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message":    "Meeting deleted",
		"meeting_id": id,
	})
}

// AddParticipantRequest represents an invitation request
type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// AddParticipant invites a user to a meeting
// POST /v1/meetings/:id/participants
func (h *Handler) AddParticipant(c *gin.Context) {
	id, ok := meetingID(c)
	if !ok {
		return
	}
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	newUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	if err := h.meetingService.AddParticipant(c.Request.Context(), id, userID, newUserID); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":    "Participant invited",
		"meeting_id": id,
		"user_id":    newUserID,
	})
}

package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/usetoolieproject/coachly-sub000/internal/room"
	"github.com/usetoolieproject/coachly-sub000/pkg/response"
)

// Handler serves administrative reads over the live room registry
type Handler struct {
	registry *room.Registry
}

// NewHandler creates a new admin handler
func NewHandler(registry *room.Registry) *Handler {
	return &Handler{registry: registry}
}

// StatsResponse describes the live signaling state
type StatsResponse struct {
	ActiveRooms       int             `json:"active_rooms"`
	TotalParticipants int             `json:"total_participants"`
	Rooms             []room.Snapshot `json:"rooms"`
}

// GetStats reports active room count, total participants, and per-room rosters
// GET /v1/admin/stats
func (h *Handler) GetStats(c *gin.Context) {
	rooms, participants := h.registry.Counts()

	response.Success(c, http.StatusOK, StatsResponse{
		ActiveRooms:       rooms,
		TotalParticipants: participants,
		Rooms:             h.registry.Stats(),
	})
}

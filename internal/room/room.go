// Package room holds the authoritative in-memory state for live meetings:
// which rooms exist and who is connected to them right now. A room exists
// exactly as long as its roster is non-empty.
package room

import (
	"time"

	"github.com/google/uuid"
)

// Session is the ephemeral per-connection record of a participant's
// presence and media state. One WebSocket connection maps to at most
// one session at a time.
type Session struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
	UserName     string    `json:"user_name"`
	IsHost       bool      `json:"is_host"`
	AudioEnabled bool      `json:"audio_enabled"`
	VideoEnabled bool      `json:"video_enabled"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Room is the transient set of active sessions for one meeting
type room struct {
	meetingID uuid.UUID
	startedAt time.Time
	sessions  map[uuid.UUID]*Session // keyed by connection ID
}

// Snapshot is a point-in-time copy of one room's roster
type Snapshot struct {
	MeetingID    uuid.UUID `json:"meeting_id"`
	StartedAt    time.Time `json:"started_at"`
	Participants []Session `json:"participants"`
}

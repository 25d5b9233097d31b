package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("not found")

// Meeting statuses
const (
	MeetingStatusScheduled  = "scheduled"
	MeetingStatusInProgress = "in_progress"
	MeetingStatusEnded      = "ended"
	MeetingStatusCancelled  = "cancelled"
)

// Participant roles
const (
	ParticipantRoleHost = "host"
	ParticipantRoleUser = "participant"
)

// Meeting represents a scheduled video meeting entity
type Meeting struct {
	MeetingID       uuid.UUID `json:"meeting_id"`
	HostID          uuid.UUID `json:"host_id"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"` // scheduled, in_progress, ended, cancelled
	RoomURL         string    `json:"room_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsTerminal reports whether the meeting reached a terminal status
func (m *Meeting) IsTerminal() bool {
	return m.Status == MeetingStatusEnded || m.Status == MeetingStatusCancelled
}

// ExpiresAt returns the end of the scheduled window
func (m *Meeting) ExpiresAt() time.Time {
	return m.ScheduledAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// MeetingParticipant represents an invitation record for a meeting
type MeetingParticipant struct {
	MeetingID uuid.UUID `json:"meeting_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"` // host, participant
	InvitedAt time.Time `json:"invited_at"`
}

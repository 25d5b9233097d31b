package cockroach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/usetoolieproject/coachly-sub000/internal/domain"
)

// MeetingRepository handles meeting data operations
type MeetingRepository struct {
	pool *pgxpool.Pool
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(pool *pgxpool.Pool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

// Create creates a new meeting record
func (r *MeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	query := `
		INSERT INTO meetings (
			meeting_id, host_id, title, scheduled_at, duration_minutes, status, room_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		meeting.MeetingID,
		meeting.HostID,
		meeting.Title,
		meeting.ScheduledAt,
		meeting.DurationMinutes,
		meeting.Status,
		meeting.RoomURL,
		meeting.CreatedAt,
		meeting.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	return nil
}

// GetByID retrieves a meeting by ID
func (r *MeetingRepository) GetByID(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error) {
	query := `
		SELECT meeting_id, host_id, title, scheduled_at, duration_minutes, status,
		       room_url, created_at, updated_at
		FROM meetings
		WHERE meeting_id = $1
	`

	meeting := &domain.Meeting{}
	err := r.pool.QueryRow(ctx, query, meetingID).Scan(
		&meeting.MeetingID,
		&meeting.HostID,
		&meeting.Title,
		&meeting.ScheduledAt,
		&meeting.DurationMinutes,
		&meeting.Status,
		&meeting.RoomURL,
		&meeting.CreatedAt,
		&meeting.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	return meeting, nil
}

// ListForUser retrieves meetings where the user is host or an invited participant,
// ordered by scheduled time ascending. An empty status matches all statuses.
func (r *MeetingRepository) ListForUser(ctx context.Context, userID uuid.UUID, status string) ([]*domain.Meeting, error) {
	query := `
		SELECT DISTINCT m.meeting_id, m.host_id, m.title, m.scheduled_at, m.duration_minutes,
		       m.status, m.room_url, m.created_at, m.updated_at
		FROM meetings m
		LEFT JOIN meeting_participants mp ON m.meeting_id = mp.meeting_id
		WHERE (m.host_id = $1 OR mp.user_id = $1)
		  AND ($2 = '' OR m.status = $2)
		ORDER BY m.scheduled_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*domain.Meeting
	for rows.Next() {
		meeting := &domain.Meeting{}
		err := rows.Scan(
			&meeting.MeetingID,
			&meeting.HostID,
			&meeting.Title,
			&meeting.ScheduledAt,
			&meeting.DurationMinutes,
			&meeting.Status,
			&meeting.RoomURL,
			&meeting.CreatedAt,
			&meeting.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, meeting)
	}

	return meetings, nil
}

// Update updates mutable meeting fields (title, schedule, duration)
func (r *MeetingRepository) Update(ctx context.Context, meeting *domain.Meeting) error {
	query := `
		UPDATE meetings
		SET title = $2, scheduled_at = $3, duration_minutes = $4, updated_at = $5
		WHERE meeting_id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		meeting.MeetingID,
		meeting.Title,
		meeting.ScheduledAt,
		meeting.DurationMinutes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdateStatus transitions a non-terminal meeting to the given status.
// Returns false when no transition happened (already terminal or missing);
// terminal statuses are never left.
func (r *MeetingRepository) UpdateStatus(ctx context.Context, meetingID uuid.UUID, status string) (bool, error) {
	query := `
		UPDATE meetings
		SET status = $2, updated_at = NOW()
		WHERE meeting_id = $1 AND status NOT IN ('ended', 'cancelled')
	`

	tag, err := r.pool.Exec(ctx, query, meetingID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update meeting status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes a meeting and cascades its participant records
func (r *MeetingRepository) Delete(ctx context.Context, meetingID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM meeting_participants WHERE meeting_id = $1`, meetingID); err != nil {
		return fmt.Errorf("failed to delete meeting participants: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// AddParticipant adds an invitation record to a meeting
func (r *MeetingRepository) AddParticipant(ctx context.Context, participant *domain.MeetingParticipant) error {
	query := `
		INSERT INTO meeting_participants (meeting_id, user_id, role, invited_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		participant.MeetingID,
		participant.UserID,
		participant.Role,
		participant.InvitedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// GetParticipants retrieves all invitation records for a meeting
func (r *MeetingRepository) GetParticipants(ctx context.Context, meetingID uuid.UUID) ([]*domain.MeetingParticipant, error) {
	query := `
		SELECT meeting_id, user_id, role, invited_at
		FROM meeting_participants
		WHERE meeting_id = $1
		ORDER BY invited_at ASC
	`

	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []*domain.MeetingParticipant
	for rows.Next() {
		p := &domain.MeetingParticipant{}
		err := rows.Scan(
			&p.MeetingID,
			&p.UserID,
			&p.Role,
			&p.InvitedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, nil
}

// HasParticipant checks whether a user already has an invitation record
func (r *MeetingRepository) HasParticipant(ctx context.Context, meetingID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM meeting_participants
			WHERE meeting_id = $1 AND user_id = $2
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, meetingID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}

	return exists, nil
}

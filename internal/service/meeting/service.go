package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/usetoolieproject/coachly-sub000/internal/domain"
	"github.com/usetoolieproject/coachly-sub000/pkg/constants"
	apperrors "github.com/usetoolieproject/coachly-sub000/pkg/errors"
)

// Repository abstracts durable meeting storage
type Repository interface {
	Create(ctx context.Context, meeting *domain.Meeting) error
	GetByID(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error)
	ListForUser(ctx context.Context, userID uuid.UUID, status string) ([]*domain.Meeting, error)
	Update(ctx context.Context, meeting *domain.Meeting) error
	UpdateStatus(ctx context.Context, meetingID uuid.UUID, status string) (bool, error)
	Delete(ctx context.Context, meetingID uuid.UUID) error
	AddParticipant(ctx context.Context, participant *domain.MeetingParticipant) error
	GetParticipants(ctx context.Context, meetingID uuid.UUID) ([]*domain.MeetingParticipant, error)
	HasParticipant(ctx context.Context, meetingID, userID uuid.UUID) (bool, error)
}

// Service owns the durable meeting state machine: scheduling, invitations,
// and monotonic status transitions. Transient room state lives in the
// registry and is allowed to diverge briefly.
type Service struct {
	repo    Repository
	baseURL string
}

// NewService creates a new meeting service. baseURL is the public prefix
// meeting room links are built from.
func NewService(repo Repository, baseURL string) *Service {
	return &Service{
		repo:    repo,
		baseURL: baseURL,
	}
}

// CreateMeetingInput contains meeting creation data
type CreateMeetingInput struct {
	HostID          uuid.UUID
	Title           string
	ScheduledAt     time.Time
	DurationMinutes int
	InvitedUserIDs  []uuid.UUID
}

// MeetingDetail bundles a meeting with its invitation records
type MeetingDetail struct {
	Meeting      *domain.Meeting              `json:"meeting"`
	Participants []*domain.MeetingParticipant `json:"participants"`
}

// CreateMeeting schedules a new meeting and creates one participant record
// per host and invitee
func (s *Service) CreateMeeting(ctx context.Context, input *CreateMeetingInput) (*domain.Meeting, error) {
	if input.Title == "" {
		return nil, apperrors.MissingFieldError("title")
	}
	if len(input.Title) > constants.MaxMeetingTitleLength {
		return nil, apperrors.ValidationError("title too long")
	}
	if input.DurationMinutes < constants.MinMeetingDurationMinutes {
		return nil, apperrors.ValidationError(fmt.Sprintf("duration must be at least %d minutes", constants.MinMeetingDurationMinutes))
	}
	if time.Duration(input.DurationMinutes)*time.Minute > constants.MaxMeetingDuration {
		return nil, apperrors.ValidationError("duration exceeds maximum")
	}
	if input.ScheduledAt.IsZero() {
		return nil, apperrors.MissingFieldError("scheduled_at")
	}

	meetingID := uuid.New()
	now := time.Now()

	meeting := &domain.Meeting{
		MeetingID:       meetingID,
		HostID:          input.HostID,
		Title:           input.Title,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Status:          domain.MeetingStatusScheduled,
		RoomURL:         fmt.Sprintf("%s/meet/%s", s.baseURL, meetingID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	host := &domain.MeetingParticipant{
		MeetingID: meetingID,
		UserID:    input.HostID,
		Role:      domain.ParticipantRoleHost,
		InvitedAt: now,
	}
	if err := s.repo.AddParticipant(ctx, host); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	seen := map[uuid.UUID]bool{input.HostID: true}
	for _, userID := range input.InvitedUserIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		p := &domain.MeetingParticipant{
			MeetingID: meetingID,
			UserID:    userID,
			Role:      domain.ParticipantRoleUser,
			InvitedAt: now,
		}
		if err := s.repo.AddParticipant(ctx, p); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
	}

	return meeting, nil
}

// ListMeetings returns meetings where the user is host or invitee, ordered
// by scheduled time ascending. status is an optional filter.
func (s *Service) ListMeetings(ctx context.Context, userID uuid.UUID, status string) ([]*domain.Meeting, error) {
	switch status {
	case "", domain.MeetingStatusScheduled, domain.MeetingStatusInProgress,
		domain.MeetingStatusEnded, domain.MeetingStatusCancelled:
	default:
		return nil, apperrors.ValidationError("invalid status filter")
	}

	meetings, err := s.repo.ListForUser(ctx, userID, status)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return meetings, nil
}

// GetMeeting returns a meeting with its participants. The requester must be
// host or an invitee; a scheduled meeting whose window elapsed without ever
// starting reads as expired.
func (s *Service) GetMeeting(ctx context.Context, meetingID, requesterID uuid.UUID) (*MeetingDetail, error) {
	meeting, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.isHostOrInvitee(ctx, meeting, requesterID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.ForbiddenError("You are not a participant of this meeting")
	}

	if meeting.Status == domain.MeetingStatusScheduled && time.Now().After(meeting.ExpiresAt()) {
		return nil, apperrors.MeetingExpiredError()
	}

	participants, err := s.repo.GetParticipants(ctx, meetingID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return &MeetingDetail{
		Meeting:      meeting,
		Participants: participants,
	}, nil
}

// UpdateMeetingInput contains the mutable meeting fields
type UpdateMeetingInput struct {
	Title           string
	ScheduledAt     time.Time
	DurationMinutes int
}

// UpdateMeeting reschedules or retitles a meeting. Host-only; terminal
// meetings are immutable.
func (s *Service) UpdateMeeting(ctx context.Context, meetingID, requesterID uuid.UUID, input *UpdateMeetingInput) (*domain.Meeting, error) {
	meeting, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.HostID != requesterID {
		return nil, apperrors.ForbiddenError("Only the host can update the meeting")
	}
	if meeting.IsTerminal() {
		return nil, apperrors.MeetingTerminalError()
	}

	if input.Title == "" {
		return nil, apperrors.MissingFieldError("title")
	}
	if len(input.Title) > constants.MaxMeetingTitleLength {
		return nil, apperrors.ValidationError("title too long")
	}
	if input.DurationMinutes < constants.MinMeetingDurationMinutes {
		return nil, apperrors.ValidationError(fmt.Sprintf("duration must be at least %d minutes", constants.MinMeetingDurationMinutes))
	}
	if time.Duration(input.DurationMinutes)*time.Minute > constants.MaxMeetingDuration {
		return nil, apperrors.ValidationError("duration exceeds maximum")
	}
	if input.ScheduledAt.IsZero() {
		return nil, apperrors.MissingFieldError("scheduled_at")
	}

	meeting.Title = input.Title
	meeting.ScheduledAt = input.ScheduledAt
	meeting.DurationMinutes = input.DurationMinutes
	meeting.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, meeting); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.MeetingNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}

	return meeting, nil
}

// CancelMeeting cancels a meeting. Host-only; cancelling an already-terminal
// meeting is a no-op, not an error.
func (s *Service) CancelMeeting(ctx context.Context, meetingID, requesterID uuid.UUID) error {
	meeting, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.HostID != requesterID {
		return apperrors.ForbiddenError("Only the host can cancel the meeting")
	}
	if meeting.IsTerminal() {
		return nil
	}

	if _, err := s.repo.UpdateStatus(ctx, meetingID, domain.MeetingStatusCancelled); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// DeleteMeeting removes a meeting and its participant records. Host-only.
func (s *Service) DeleteMeeting(ctx context.Context, meetingID, requesterID uuid.UUID) error {
	meeting, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.HostID != requesterID {
		return apperrors.ForbiddenError("Only the host can delete the meeting")
	}

	if err := s.repo.Delete(ctx, meetingID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.MeetingNotFoundError()
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

// AddParticipant invites a user to a meeting. Host-only; inviting a user
// twice is a conflict.
func (s *Service) AddParticipant(ctx context.Context, meetingID, requesterID, newUserID uuid.UUID) error {
	meeting, err := s.getMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.HostID != requesterID {
		return apperrors.ForbiddenError("Only the host can invite participants")
	}

	exists, err := s.repo.HasParticipant(ctx, meetingID, newUserID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if exists {
		return apperrors.DuplicateInviteError()
	}

	p := &domain.MeetingParticipant{
		MeetingID: meetingID,
		UserID:    newUserID,
		Role:      domain.ParticipantRoleUser,
		InvitedAt: time.Now(),
	}
	if err := s.repo.AddParticipant(ctx, p); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// MarkInProgress records that the meeting went live. Guarded: a terminal
// meeting is never revived, the write simply does not happen.
func (s *Service) MarkInProgress(ctx context.Context, meetingID uuid.UUID) (bool, error) {
	transitioned, err := s.repo.UpdateStatus(ctx, meetingID, domain.MeetingStatusInProgress)
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return transitioned, nil
}

// MarkEnded records that the meeting finished. Guarded like MarkInProgress.
func (s *Service) MarkEnded(ctx context.Context, meetingID uuid.UUID) (bool, error) {
	transitioned, err := s.repo.UpdateStatus(ctx, meetingID, domain.MeetingStatusEnded)
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return transitioned, nil
}

func (s *Service) getMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error) {
	meeting, err := s.repo.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.MeetingNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}
	return meeting, nil
}

func (s *Service) isHostOrInvitee(ctx context.Context, meeting *domain.Meeting, userID uuid.UUID) (bool, error) {
	if meeting.HostID == userID {
		return true, nil
	}
	has, err := s.repo.HasParticipant(ctx, meeting.MeetingID, userID)
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return has, nil
}

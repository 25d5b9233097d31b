package meeting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usetoolieproject/coachly-sub000/internal/domain"
	"github.com/usetoolieproject/coachly-sub000/pkg/constants"
	"github.com/usetoolieproject/coachly-sub000/pkg/logger"
	"github.com/usetoolieproject/coachly-sub000/pkg/metrics"
)

// IntentKind identifies a lifecycle intent emitted by the signaling path
type IntentKind string

const (
	// IntentRoomStarted fires when a host joins the live room
	IntentRoomStarted IntentKind = "room_started"
	// IntentRoomEmptied fires when the last participant leaves
	IntentRoomEmptied IntentKind = "room_emptied"
	// IntentMeetingEnded fires when the host explicitly ends the meeting
	IntentMeetingEnded IntentKind = "meeting_ended"
)

// Intent is one pending signaling-to-persistence notification
type Intent struct {
	Kind      IntentKind
	MeetingID uuid.UUID
}

// Outbox decouples the signaling path from durable writes: the router
// enqueues intents and returns immediately, a worker applies them. Delivery
// is best-effort; the queue drops when full rather than blocking a
// broadcast, and transient/durable state may diverge briefly.
type Outbox struct {
	svc     *Service
	metrics *metrics.Metrics
	ch      chan Intent
}

// NewOutbox creates an outbox feeding the given service
func NewOutbox(svc *Service, m *metrics.Metrics) *Outbox {
	return &Outbox{
		svc:     svc,
		metrics: m,
		ch:      make(chan Intent, constants.LifecycleOutboxSize),
	}
}

// Start runs the consumer until ctx is cancelled
func (o *Outbox) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case intent := <-o.ch:
				o.process(ctx, intent)
			}
		}
	}()
}

// RoomStarted implements the lifecycle notifier consumed by the signaling hub
func (o *Outbox) RoomStarted(meetingID uuid.UUID) {
	o.enqueue(Intent{Kind: IntentRoomStarted, MeetingID: meetingID})
}

// RoomEmptied implements the lifecycle notifier consumed by the signaling hub
func (o *Outbox) RoomEmptied(meetingID uuid.UUID) {
	o.enqueue(Intent{Kind: IntentRoomEmptied, MeetingID: meetingID})
}

// MeetingEnded implements the lifecycle notifier consumed by the signaling hub
func (o *Outbox) MeetingEnded(meetingID uuid.UUID) {
	o.enqueue(Intent{Kind: IntentMeetingEnded, MeetingID: meetingID})
}

func (o *Outbox) enqueue(intent Intent) {
	select {
	case o.ch <- intent:
	default:
		logger.Warn("lifecycle outbox full, dropping intent",
			zap.String("kind", string(intent.Kind)),
			zap.String("meeting_id", intent.MeetingID.String()))
	}
}

func (o *Outbox) process(ctx context.Context, intent Intent) {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var (
		transitioned bool
		status       string
		err          error
	)

	switch intent.Kind {
	case IntentRoomStarted:
		status = domain.MeetingStatusInProgress
		transitioned, err = o.svc.MarkInProgress(writeCtx, intent.MeetingID)
	case IntentRoomEmptied, IntentMeetingEnded:
		status = domain.MeetingStatusEnded
		transitioned, err = o.svc.MarkEnded(writeCtx, intent.MeetingID)
	default:
		return
	}

	if err != nil {
		// Surfaced for operators, not rolled back: the broadcast already
		// happened and transient state is allowed to run ahead
		logger.Error("lifecycle intent failed",
			zap.String("kind", string(intent.Kind)),
			zap.String("meeting_id", intent.MeetingID.String()),
			zap.Error(err))
		return
	}

	if transitioned {
		if o.metrics != nil {
			o.metrics.RecordMeetingTransition(status)
		}
		logger.Info("meeting status updated",
			zap.String("meeting_id", intent.MeetingID.String()),
			zap.String("status", status))
	}
}

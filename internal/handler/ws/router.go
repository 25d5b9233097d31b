package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usetoolieproject/coachly-sub000/internal/room"
	"github.com/usetoolieproject/coachly-sub000/pkg/constants"
	apperrors "github.com/usetoolieproject/coachly-sub000/pkg/errors"
	"github.com/usetoolieproject/coachly-sub000/pkg/logger"
)

// handleMessage decodes one inbound frame and dispatches it. The message set
// is a closed union: every type is handled here and anything else is bounced
// back to the sender. Errors always go to the offending connection only.
func (h *SignalingHub) handleMessage(c *SignalingClient, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed message")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordWebsocketMessage(env.Type)
	}

	switch env.Type {
	case MsgJoinRoom:
		h.handleJoinRoom(c, env.Payload)
	case MsgWebRTCOffer:
		h.handleOffer(c, env.Payload)
	case MsgWebRTCAnswer:
		h.handleAnswer(c, env.Payload)
	case MsgICECandidate:
		h.handleCandidate(c, env.Payload)
	case MsgToggleAudio:
		h.handleToggle(c, env.Payload, EventAudioChanged, h.registry.SetAudio)
	case MsgToggleVideo:
		h.handleToggle(c, env.Payload, EventVideoChanged, h.registry.SetVideo)
	case MsgChatMessage:
		h.handleChat(c, env.Payload)
	case MsgStartScreenShare:
		h.handleScreenShare(c, env.Payload, EventScreenShareStarted)
	case MsgStopScreenShare:
		h.handleScreenShare(c, env.Payload, EventScreenShareStopped)
	case MsgLeaveRoom:
		h.leave(c)
	case MsgEndMeeting:
		h.handleEndMeeting(c, env.Payload)
	default:
		h.sendError(c, apperrors.ErrCodeInvalidInput, "unknown message type: "+env.Type)
	}
}

func (h *SignalingHub) sendError(c *SignalingClient, code apperrors.ErrorCode, message string) {
	h.sendTo(c.connectionID, newEvent(EventError, ErrorEvent{
		Code:    string(code),
		Message: message,
	}))
}

// joinedRoom resolves the caller's room, replying with an error when the
// connection has not joined one
func (h *SignalingHub) joinedRoom(c *SignalingClient) (uuid.UUID, bool) {
	meetingID, ok := c.currentRoom()
	if !ok {
		h.sendError(c, apperrors.ErrCodeValidation, "not in a room")
		return uuid.Nil, false
	}
	return meetingID, true
}

func (h *SignalingHub) handleJoinRoom(c *SignalingClient, raw json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed join-room payload")
		return
	}

	meetingID, err := uuid.Parse(p.MeetingID)
	if err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "invalid meeting id")
		return
	}

	session := room.Session{
		ConnectionID: c.connectionID,
		UserID:       c.userID,
		UserName:     c.userName,
		IsHost:       p.IsHost,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     time.Now(),
	}

	// The connection state flips first so a second join on the same
	// connection is rejected before it can touch the registry.
	if !c.markJoined(meetingID) {
		h.sendError(c, apperrors.ErrCodeValidation, "already joined a room")
		return
	}

	existing, created := h.registry.Join(meetingID, session)

	// Roster snapshot was captured before the insert: it never lists the
	// joiner itself.
	infos := make([]ParticipantInfo, 0, len(existing))
	for _, s := range existing {
		infos = append(infos, toParticipantInfo(s))
	}
	h.sendTo(c.connectionID, newEvent(EventExistingParticipants, ExistingParticipantsEvent{
		MeetingID:    meetingID,
		Participants: infos,
	}))

	h.broadcastToRoom(meetingID, newEvent(EventUserJoined, UserJoinedEvent{
		Participant: toParticipantInfo(session),
	}), c.connectionID)

	if p.IsHost && h.lifecycle != nil {
		h.lifecycle.RoomStarted(meetingID)
	}
	h.updateRoomGauges()

	logger.Info("participant joined room",
		zap.String("meeting_id", meetingID.String()),
		zap.String("connection_id", c.connectionID.String()),
		zap.Bool("is_host", p.IsHost),
		zap.Bool("room_created", created))
}

// relay delivers a point-to-point signaling message after checking that
// sender and target share a room. A target that already disconnected is
// silently dropped.
func (h *SignalingHub) relay(c *SignalingClient, to string, build func(from room.Session) []byte) {
	meetingID, ok := h.joinedRoom(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(to)
	if err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "invalid target connection id")
		return
	}

	sender, ok := h.registry.Get(meetingID, c.connectionID)
	if !ok {
		return
	}

	// Relays are restricted to peers in the same room; anything else is
	// treated like a vanished target.
	if !h.registry.Member(meetingID, targetID) {
		logger.Debug("relay target not in room, dropping",
			zap.String("meeting_id", meetingID.String()),
			zap.String("target", targetID.String()))
		return
	}

	h.sendTo(targetID, build(sender))
}

func (h *SignalingHub) handleOffer(c *SignalingClient, raw json.RawMessage) {
	var p OfferPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed offer payload")
		return
	}

	h.relay(c, p.To, func(from room.Session) []byte {
		return newEvent(EventWebRTCOffer, OfferEvent{
			Offer:        p.Offer,
			From:         from.ConnectionID,
			FromUserID:   from.UserID,
			FromUserName: from.UserName,
		})
	})
}

func (h *SignalingHub) handleAnswer(c *SignalingClient, raw json.RawMessage) {
	var p AnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed answer payload")
		return
	}

	h.relay(c, p.To, func(from room.Session) []byte {
		return newEvent(EventWebRTCAnswer, AnswerEvent{
			Answer: p.Answer,
			From:   from.ConnectionID,
		})
	})
}

func (h *SignalingHub) handleCandidate(c *SignalingClient, raw json.RawMessage) {
	var p CandidatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed candidate payload")
		return
	}

	// Trickle ICE: many candidates per peer pair, no ordering or dedup
	h.relay(c, p.To, func(from room.Session) []byte {
		return newEvent(EventICECandidate, CandidateEvent{
			Candidate: p.Candidate,
			From:      from.ConnectionID,
		})
	})
}

func (h *SignalingHub) handleToggle(c *SignalingClient, raw json.RawMessage, eventType string, set func(meetingID, connectionID uuid.UUID, enabled bool) bool) {
	var p TogglePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed toggle payload")
		return
	}

	meetingID, ok := h.joinedRoom(c)
	if !ok {
		return
	}

	if !set(meetingID, c.connectionID, p.Enabled) {
		return
	}

	h.broadcastToRoom(meetingID, newEvent(eventType, MediaChangedEvent{
		ConnectionID: c.connectionID,
		Enabled:      p.Enabled,
	}), c.connectionID)
}

func (h *SignalingHub) handleChat(c *SignalingClient, raw json.RawMessage) {
	var p ChatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed chat payload")
		return
	}

	if len(p.Message) > constants.MaxChatMessageLength {
		h.sendError(c, apperrors.ErrCodeValidation, "chat message too long")
		return
	}

	meetingID, ok := h.joinedRoom(c)
	if !ok {
		return
	}

	// Chat goes to the whole room, sender included. TODO: persist chat
	// history once the transcript feature lands.
	event := newEvent(EventChatMessage, ChatMessageEvent{
		ID:           uuid.New(),
		ConnectionID: c.connectionID,
		UserID:       c.userID,
		UserName:     c.userName,
		Message:      p.Message,
		Timestamp:    time.Now().UTC(),
	})
	h.broadcastToRoom(meetingID, event, uuid.Nil)
}

func (h *SignalingHub) handleScreenShare(c *SignalingClient, raw json.RawMessage, eventType string) {
	var p RoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed screen-share payload")
		return
	}

	meetingID, ok := h.joinedRoom(c)
	if !ok {
		return
	}

	h.broadcastToRoom(meetingID, newEvent(eventType, ScreenShareEvent{
		ConnectionID: c.connectionID,
	}), c.connectionID)
}

// leave removes the caller from its room, notifying the remaining members.
// Called for explicit leave-room and for socket disconnect; a connection
// that already left is a no-op.
func (h *SignalingHub) leave(c *SignalingClient) {
	meetingID, ok := c.currentRoom()
	if !ok {
		return
	}

	removed, ok, emptied := h.registry.Leave(meetingID, c.connectionID)
	c.detach()
	if !ok {
		return
	}

	h.broadcastToRoom(meetingID, newEvent(EventUserLeft, UserLeftEvent{
		ConnectionID: removed.ConnectionID,
		UserID:       removed.UserID,
	}), uuid.Nil)

	if emptied && h.lifecycle != nil {
		h.lifecycle.RoomEmptied(meetingID)
	}
	h.updateRoomGauges()

	logger.Info("participant left room",
		zap.String("meeting_id", meetingID.String()),
		zap.String("connection_id", c.connectionID.String()),
		zap.Bool("room_emptied", emptied))
}

func (h *SignalingHub) handleEndMeeting(c *SignalingClient, raw json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(c, apperrors.ErrCodeInvalidInput, "malformed end-meeting payload")
		return
	}

	meetingID, ok := h.joinedRoom(c)
	if !ok {
		return
	}

	caller, ok := h.registry.Get(meetingID, c.connectionID)
	if !ok {
		return
	}
	if !caller.IsHost {
		h.sendError(c, apperrors.ErrCodeForbidden, "only the host can end the meeting")
		return
	}

	// Queue the ended event for everyone, host included, before the room
	// and its bindings disappear
	event := newEvent(EventMeetingEnded, MeetingEndedEvent{MeetingID: meetingID})
	h.broadcastToRoom(meetingID, event, uuid.Nil)

	detached := h.registry.Delete(meetingID)

	h.mu.RLock()
	for _, s := range detached {
		if client, exists := h.clients[s.ConnectionID]; exists {
			client.detach()
		}
	}
	h.mu.RUnlock()

	if h.lifecycle != nil {
		h.lifecycle.MeetingEnded(meetingID)
	}
	h.updateRoomGauges()

	logger.Info("meeting ended by host",
		zap.String("meeting_id", meetingID.String()),
		zap.String("host_connection_id", c.connectionID.String()),
		zap.Int("detached", len(detached)))
}

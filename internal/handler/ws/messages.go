package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/usetoolieproject/coachly-sub000/internal/room"
)

// Client-to-server message types. The union is closed: dispatch handles
// every member and rejects anything else back to the sender.
const (
	MsgJoinRoom         = "join-room"
	MsgWebRTCOffer      = "webrtc-offer"
	MsgWebRTCAnswer     = "webrtc-answer"
	MsgICECandidate     = "ice-candidate"
	MsgToggleAudio      = "toggle-audio"
	MsgToggleVideo      = "toggle-video"
	MsgChatMessage      = "chat-message"
	MsgStartScreenShare = "start-screen-share"
	MsgStopScreenShare  = "stop-screen-share"
	MsgLeaveRoom        = "leave-room"
	MsgEndMeeting       = "end-meeting"
)

// Server-to-client event types
const (
	EventExistingParticipants = "existing-participants"
	EventUserJoined           = "user-joined"
	EventWebRTCOffer          = "webrtc-offer"
	EventWebRTCAnswer         = "webrtc-answer"
	EventICECandidate         = "ice-candidate"
	EventAudioChanged         = "participant-audio-changed"
	EventVideoChanged         = "participant-video-changed"
	EventChatMessage          = "chat-message"
	EventScreenShareStarted   = "screen-share-started"
	EventScreenShareStopped   = "screen-share-stopped"
	EventUserLeft             = "user-left"
	EventMeetingEnded         = "meeting-ended"
	EventError                = "error"
)

// Envelope is the wire frame for both directions. Payload shape depends
// on Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-server payloads. Field names follow the browser-facing
// protocol (camelCase), unlike the snake_case HTTP surface.

// JoinRoomPayload asks to join the room for a meeting
type JoinRoomPayload struct {
	MeetingID string `json:"meetingId"`
	IsHost    bool   `json:"isHost"`
}

// OfferPayload carries an SDP offer to one peer
type OfferPayload struct {
	Offer json.RawMessage `json:"offer"`
	To    string          `json:"to"`
}

// AnswerPayload carries an SDP answer to one peer
type AnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
	To     string          `json:"to"`
}

// CandidatePayload carries one trickle ICE candidate to one peer
type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
	To        string          `json:"to"`
}

// TogglePayload flips the caller's audio or video flag
type TogglePayload struct {
	RoomID  string `json:"roomId"`
	Enabled bool   `json:"enabled"`
}

// ChatPayload carries a chat line for the whole room
type ChatPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// RoomPayload is used by the room-scoped messages that carry no other data
// (screen share, leave, end-meeting)
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// Server-to-client payloads

// ParticipantInfo is the roster entry shape sent to clients
type ParticipantInfo struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	UserID       uuid.UUID `json:"userId"`
	UserName     string    `json:"userName"`
	IsHost       bool      `json:"isHost"`
	AudioEnabled bool      `json:"audioEnabled"`
	VideoEnabled bool      `json:"videoEnabled"`
}

func toParticipantInfo(s room.Session) ParticipantInfo {
	return ParticipantInfo{
		ConnectionID: s.ConnectionID,
		UserID:       s.UserID,
		UserName:     s.UserName,
		IsHost:       s.IsHost,
		AudioEnabled: s.AudioEnabled,
		VideoEnabled: s.VideoEnabled,
	}
}

// ExistingParticipantsEvent is sent to a joiner only; the roster is captured
// before the joiner's own insertion, so it never lists the joiner itself
type ExistingParticipantsEvent struct {
	MeetingID    uuid.UUID         `json:"meetingId"`
	Participants []ParticipantInfo `json:"participants"`
}

// UserJoinedEvent notifies existing members of a new participant
type UserJoinedEvent struct {
	Participant ParticipantInfo `json:"participant"`
}

// OfferEvent is the relayed SDP offer, annotated with sender identity
type OfferEvent struct {
	Offer        json.RawMessage `json:"offer"`
	From         uuid.UUID       `json:"from"`
	FromUserID   uuid.UUID       `json:"fromUserId"`
	FromUserName string          `json:"fromUserName"`
}

// AnswerEvent is the relayed SDP answer
type AnswerEvent struct {
	Answer json.RawMessage `json:"answer"`
	From   uuid.UUID       `json:"from"`
}

// CandidateEvent is the relayed ICE candidate
type CandidateEvent struct {
	Candidate json.RawMessage `json:"candidate"`
	From      uuid.UUID       `json:"from"`
}

// MediaChangedEvent reports a participant's new audio or video state
type MediaChangedEvent struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	Enabled      bool      `json:"enabled"`
}

// ChatMessageEvent is broadcast to the entire room including the sender
type ChatMessageEvent struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connectionId"`
	UserID       uuid.UUID `json:"userId"`
	UserName     string    `json:"userName"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScreenShareEvent reports a presenter starting or stopping
type ScreenShareEvent struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

// UserLeftEvent notifies remaining members of a departure
type UserLeftEvent struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	UserID       uuid.UUID `json:"userId"`
}

// MeetingEndedEvent is sent to the whole room when the host ends the meeting
type MeetingEndedEvent struct {
	MeetingID uuid.UUID `json:"meetingId"`
}

// ErrorEvent is delivered only on the connection that triggered it
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newEvent marshals a server event into its wire frame
func newEvent(eventType string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	data, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		return nil
	}
	return data
}

package ws

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usetoolieproject/coachly-sub000/internal/room"
	"github.com/usetoolieproject/coachly-sub000/pkg/constants"
	"github.com/usetoolieproject/coachly-sub000/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	m.Run()
}

// recordingNotifier captures lifecycle intents emitted by the router
type recordingNotifier struct {
	mu      sync.Mutex
	started []uuid.UUID
	emptied []uuid.UUID
	ended   []uuid.UUID
}

func (n *recordingNotifier) RoomStarted(meetingID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, meetingID)
}

func (n *recordingNotifier) RoomEmptied(meetingID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emptied = append(n.emptied, meetingID)
}

func (n *recordingNotifier) MeetingEnded(meetingID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, meetingID)
}

func newTestHub() (*SignalingHub, *recordingNotifier) {
	notifier := &recordingNotifier{}
	hub := &SignalingHub{
		registry:       room.NewRegistry(),
		lifecycle:      notifier,
		clients:        make(map[uuid.UUID]*SignalingClient),
		maxConnections: 16,
		semaphore:      make(chan struct{}, 16),
	}
	return hub, notifier
}

// newTestClient registers an in-process client with a buffered send channel
// and no real socket; handlers only ever queue onto send
func newTestClient(hub *SignalingHub, name string) *SignalingClient {
	c := &SignalingClient{
		hub:          hub,
		send:         make(chan []byte, 64),
		connectionID: uuid.New(),
		userID:       uuid.New(),
		userName:     name,
	}
	hub.mu.Lock()
	hub.clients[c.connectionID] = c
	hub.mu.Unlock()
	return c
}

func frame(t *testing.T, msgType string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	require.NoError(t, err)
	return data
}

// drain returns every event currently queued on a client, decoded
func drain(t *testing.T, c *SignalingClient) []Envelope {
	t.Helper()
	var events []Envelope
	for {
		select {
		case data := <-c.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			events = append(events, env)
		default:
			return events
		}
	}
}

func decodePayload(t *testing.T, env Envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Payload, out))
}

func join(t *testing.T, hub *SignalingHub, c *SignalingClient, meetingID uuid.UUID, isHost bool) {
	t.Helper()
	hub.handleMessage(c, frame(t, MsgJoinRoom, JoinRoomPayload{
		MeetingID: meetingID.String(),
		IsHost:    isHost,
	}))
}

func TestJoinRoomRosterAndNotifications(t *testing.T) {
	hub, notifier := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	join(t, hub, host, meetingID, true)

	events := drain(t, host)
	require.Len(t, events, 1)
	assert.Equal(t, EventExistingParticipants, events[0].Type)

	var roster ExistingParticipantsEvent
	decodePayload(t, events[0], &roster)
	assert.Equal(t, meetingID, roster.MeetingID)
	assert.Empty(t, roster.Participants, "first joiner sees nobody")

	guest := newTestClient(hub, "bob")
	join(t, hub, guest, meetingID, false)

	events = drain(t, guest)
	require.Len(t, events, 1)
	decodePayload(t, events[0], &roster)
	require.Len(t, roster.Participants, 1)
	assert.Equal(t, host.connectionID, roster.Participants[0].ConnectionID)
	assert.True(t, roster.Participants[0].IsHost)

	events = drain(t, host)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserJoined, events[0].Type)

	var joined UserJoinedEvent
	decodePayload(t, events[0], &joined)
	assert.Equal(t, guest.connectionID, joined.Participant.ConnectionID)
	assert.Equal(t, "bob", joined.Participant.UserName)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []uuid.UUID{meetingID}, notifier.started, "host join reports the room as live")
	assert.Empty(t, notifier.emptied)
}

func TestJoinTwiceRejected(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	c := newTestClient(hub, "alice")
	join(t, hub, c, meetingID, false)
	drain(t, c)

	join(t, hub, c, uuid.New(), false)

	events := drain(t, c)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)

	// Only the first room exists
	rooms, _ := hub.registry.Counts()
	assert.Equal(t, 1, rooms)
}

func TestOfferRelayedWithSenderIdentity(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	hub.handleMessage(host, frame(t, MsgWebRTCOffer, OfferPayload{
		Offer: sdp,
		To:    guest.connectionID.String(),
	}))

	events := drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventWebRTCOffer, events[0].Type)

	var offer OfferEvent
	decodePayload(t, events[0], &offer)
	assert.Equal(t, host.connectionID, offer.From)
	assert.Equal(t, host.userID, offer.FromUserID)
	assert.Equal(t, "alice", offer.FromUserName)
	assert.JSONEq(t, string(sdp), string(offer.Offer))

	assert.Empty(t, drain(t, host), "sender receives nothing back")
}

func TestRelayToVanishedTargetIsSilent(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	join(t, hub, host, meetingID, true)
	drain(t, host)

	hub.handleMessage(host, frame(t, MsgICECandidate, CandidatePayload{
		Candidate: json.RawMessage(`{"candidate":"candidate:0"}`),
		To:        uuid.New().String(),
	}))

	assert.Empty(t, drain(t, host), "missing target is dropped without an error")
}

func TestRelayAcrossRoomsDropped(t *testing.T) {
	hub, _ := newTestHub()

	host := newTestClient(hub, "alice")
	outsider := newTestClient(hub, "mallory")
	join(t, hub, host, uuid.New(), true)
	join(t, hub, outsider, uuid.New(), false)
	drain(t, host)
	drain(t, outsider)

	hub.handleMessage(outsider, frame(t, MsgWebRTCAnswer, AnswerPayload{
		Answer: json.RawMessage(`{"type":"answer"}`),
		To:     host.connectionID.String(),
	}))

	assert.Empty(t, drain(t, host), "peers in other rooms are unreachable")
	assert.Empty(t, drain(t, outsider))
}

func TestRelayBeforeJoinRejected(t *testing.T) {
	hub, _ := newTestHub()

	c := newTestClient(hub, "alice")
	hub.handleMessage(c, frame(t, MsgWebRTCOffer, OfferPayload{
		Offer: json.RawMessage(`{}`),
		To:    uuid.New().String(),
	}))

	events := drain(t, c)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

func TestToggleAudioBroadcastExcludesSender(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	hub.handleMessage(host, frame(t, MsgToggleAudio, TogglePayload{
		RoomID:  meetingID.String(),
		Enabled: false,
	}))

	assert.Empty(t, drain(t, host), "toggling is confirmed locally, not echoed")

	events := drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventAudioChanged, events[0].Type)

	var changed MediaChangedEvent
	decodePayload(t, events[0], &changed)
	assert.Equal(t, host.connectionID, changed.ConnectionID)
	assert.False(t, changed.Enabled)

	s, ok := hub.registry.Get(meetingID, host.connectionID)
	require.True(t, ok)
	assert.False(t, s.AudioEnabled)
	assert.True(t, s.VideoEnabled)
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	before := time.Now().UTC()
	hub.handleMessage(guest, frame(t, MsgChatMessage, ChatPayload{
		RoomID:  meetingID.String(),
		Message: "hello everyone",
	}))

	for _, c := range []*SignalingClient{host, guest} {
		events := drain(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, EventChatMessage, events[0].Type)

		var msg ChatMessageEvent
		decodePayload(t, events[0], &msg)
		assert.Equal(t, guest.connectionID, msg.ConnectionID)
		assert.Equal(t, "bob", msg.UserName)
		assert.Equal(t, "hello everyone", msg.Message)
		assert.NotEqual(t, uuid.Nil, msg.ID)
		assert.False(t, msg.Timestamp.Before(before))
	}
}

func TestChatMessageTooLong(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	hub.handleMessage(guest, frame(t, MsgChatMessage, ChatPayload{
		RoomID:  meetingID.String(),
		Message: strings.Repeat("a", constants.MaxChatMessageLength+1),
	}))

	events := drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Empty(t, drain(t, host), "oversized chat never reaches the room")
}

func TestScreenShareBroadcast(t *testing.T) {
	hub, _ := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	hub.handleMessage(host, frame(t, MsgStartScreenShare, RoomPayload{RoomID: meetingID.String()}))

	events := drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventScreenShareStarted, events[0].Type)

	var share ScreenShareEvent
	decodePayload(t, events[0], &share)
	assert.Equal(t, host.connectionID, share.ConnectionID)

	hub.handleMessage(host, frame(t, MsgStopScreenShare, RoomPayload{RoomID: meetingID.String()}))
	events = drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventScreenShareStopped, events[0].Type)
}

func TestLeaveNotifiesRoomAndEmptiesIt(t *testing.T) {
	hub, notifier := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	hub.handleMessage(guest, frame(t, MsgLeaveRoom, RoomPayload{RoomID: meetingID.String()}))

	events := drain(t, host)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserLeft, events[0].Type)

	var left UserLeftEvent
	decodePayload(t, events[0], &left)
	assert.Equal(t, guest.connectionID, left.ConnectionID)
	assert.Equal(t, guest.userID, left.UserID)

	// Second leave from the same connection is ignored
	hub.handleMessage(guest, frame(t, MsgLeaveRoom, RoomPayload{RoomID: meetingID.String()}))
	assert.Empty(t, drain(t, host))

	hub.handleMessage(host, frame(t, MsgLeaveRoom, RoomPayload{RoomID: meetingID.String()}))

	rooms, _ := hub.registry.Counts()
	assert.Equal(t, 0, rooms)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []uuid.UUID{meetingID}, notifier.emptied)
}

func TestEndMeetingHostOnly(t *testing.T) {
	hub, notifier := newTestHub()
	meetingID := uuid.New()

	host := newTestClient(hub, "alice")
	guest := newTestClient(hub, "bob")
	join(t, hub, host, meetingID, true)
	join(t, hub, guest, meetingID, false)
	drain(t, host)
	drain(t, guest)

	// A participant cannot end the meeting
	hub.handleMessage(guest, frame(t, MsgEndMeeting, RoomPayload{RoomID: meetingID.String()}))

	events := drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Empty(t, drain(t, host), "failed attempt is invisible to others")
	assert.True(t, hub.registry.Member(meetingID, guest.connectionID))

	// The host can
	hub.handleMessage(host, frame(t, MsgEndMeeting, RoomPayload{RoomID: meetingID.String()}))

	for _, c := range []*SignalingClient{host, guest} {
		events := drain(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, EventMeetingEnded, events[0].Type)

		var ended MeetingEndedEvent
		decodePayload(t, events[0], &ended)
		assert.Equal(t, meetingID, ended.MeetingID)
	}

	rooms, _ := hub.registry.Counts()
	assert.Equal(t, 0, rooms)

	notifier.mu.Lock()
	assert.Equal(t, []uuid.UUID{meetingID}, notifier.ended)
	assert.Empty(t, notifier.emptied, "explicit end does not double-report")
	notifier.mu.Unlock()

	// Detached connections cannot keep signaling
	hub.handleMessage(guest, frame(t, MsgChatMessage, ChatPayload{Message: "still here?"}))
	events = drain(t, guest)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

// Broadcasts race against disconnects from other read loops; a send must
// never land on a channel that disconnect already closed.
func TestSendDuringDisconnect(t *testing.T) {
	hub, _ := newTestHub()
	data := newEvent(EventChatMessage, ChatMessageEvent{Message: "x"})

	for i := 0; i < 500; i++ {
		c := newTestClient(hub, "alice")
		hub.semaphore <- struct{}{}

		var wg sync.WaitGroup
		wg.Add(4)
		for s := 0; s < 3; s++ {
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					hub.sendTo(c.connectionID, data)
				}
			}()
		}
		go func() {
			defer wg.Done()
			hub.disconnect(c)
		}()
		wg.Wait()

		assert.False(t, hub.sendTo(c.connectionID, data),
			"disconnected client must be unreachable")
	}
}

func TestUnknownMessageTypeRejected(t *testing.T) {
	hub, _ := newTestHub()

	c := newTestClient(hub, "alice")
	hub.handleMessage(c, frame(t, "self-destruct", RoomPayload{}))

	events := drain(t, c)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)

	var errEvent ErrorEvent
	decodePayload(t, events[0], &errEvent)
	assert.Contains(t, errEvent.Message, "unknown message type")
}

func TestMalformedFrameRejected(t *testing.T) {
	hub, _ := newTestHub()

	c := newTestClient(hub, "alice")
	hub.handleMessage(c, []byte("not json at all"))

	events := drain(t, c)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

func TestInvalidMeetingIDRejected(t *testing.T) {
	hub, _ := newTestHub()

	c := newTestClient(hub, "alice")
	hub.handleMessage(c, frame(t, MsgJoinRoom, JoinRoomPayload{MeetingID: "not-a-uuid"}))

	events := drain(t, c)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)

	rooms, _ := hub.registry.Counts()
	assert.Equal(t, 0, rooms)
}

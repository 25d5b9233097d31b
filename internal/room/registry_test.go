package room

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(name string, host bool) Session {
	return Session{
		ConnectionID: uuid.New(),
		UserID:       uuid.New(),
		UserName:     name,
		IsHost:       host,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     time.Now(),
	}
}

func TestJoinCreatesRoom(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	host := newSession("alice", true)
	existing, created := r.Join(meetingID, host)

	assert.True(t, created)
	assert.Empty(t, existing, "first joiner should see an empty roster")

	rooms, participants := r.Counts()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, participants)
}

func TestJoinRosterExcludesJoiner(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	host := newSession("alice", true)
	guest := newSession("bob", false)

	r.Join(meetingID, host)
	existing, created := r.Join(meetingID, guest)

	assert.False(t, created)
	require.Len(t, existing, 1)
	assert.Equal(t, host.ConnectionID, existing[0].ConnectionID)
	assert.Equal(t, "alice", existing[0].UserName)
}

func TestLeaveRemovesSession(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	host := newSession("alice", true)
	guest := newSession("bob", false)
	r.Join(meetingID, host)
	r.Join(meetingID, guest)

	removed, ok, emptied := r.Leave(meetingID, guest.ConnectionID)

	assert.True(t, ok)
	assert.False(t, emptied)
	assert.Equal(t, "bob", removed.UserName)
	assert.False(t, r.Member(meetingID, guest.ConnectionID))
	assert.True(t, r.Member(meetingID, host.ConnectionID))
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	host := newSession("alice", true)
	r.Join(meetingID, host)

	_, ok, emptied := r.Leave(meetingID, host.ConnectionID)
	assert.True(t, ok)
	assert.True(t, emptied)

	rooms, _ := r.Counts()
	assert.Equal(t, 0, rooms)

	// A rejoin under the same meeting ID gets a fresh, empty room.
	existing, created := r.Join(meetingID, newSession("alice", true))
	assert.True(t, created)
	assert.Empty(t, existing)
}

func TestLeaveUnknownConnectionIsNoOp(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	host := newSession("alice", true)
	r.Join(meetingID, host)

	_, ok, emptied := r.Leave(meetingID, uuid.New())
	assert.False(t, ok)
	assert.False(t, emptied)

	// Double leave after a real one is equally harmless.
	_, ok, _ = r.Leave(meetingID, host.ConnectionID)
	assert.True(t, ok)
	_, ok, _ = r.Leave(meetingID, host.ConnectionID)
	assert.False(t, ok)

	_, ok, _ = r.Leave(uuid.New(), host.ConnectionID)
	assert.False(t, ok)
}

func TestDeleteReturnsDetachedSessions(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	r.Join(meetingID, newSession("alice", true))
	r.Join(meetingID, newSession("bob", false))
	r.Join(meetingID, newSession("carol", false))

	detached := r.Delete(meetingID)
	assert.Len(t, detached, 3)

	rooms, participants := r.Counts()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, participants)

	assert.Nil(t, r.Delete(meetingID), "deleting a missing room returns nil")
}

func TestSetMediaFlags(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	s := newSession("alice", true)
	r.Join(meetingID, s)

	assert.True(t, r.SetAudio(meetingID, s.ConnectionID, false))
	assert.True(t, r.SetVideo(meetingID, s.ConnectionID, false))

	got, ok := r.Get(meetingID, s.ConnectionID)
	require.True(t, ok)
	assert.False(t, got.AudioEnabled)
	assert.False(t, got.VideoEnabled)

	// Repeating an identical toggle is harmless.
	assert.True(t, r.SetAudio(meetingID, s.ConnectionID, false))

	assert.False(t, r.SetAudio(meetingID, uuid.New(), true))
	assert.False(t, r.SetAudio(uuid.New(), s.ConnectionID, true))
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	s := newSession("alice", true)
	r.Join(meetingID, s)

	members := r.Members(meetingID)
	require.Len(t, members, 1)
	members[0].AudioEnabled = false
	members[0].UserName = "mallory"

	got, ok := r.Get(meetingID, s.ConnectionID)
	require.True(t, ok)
	assert.True(t, got.AudioEnabled)
	assert.Equal(t, "alice", got.UserName)
}

func TestStats(t *testing.T) {
	r := NewRegistry()

	m1 := uuid.New()
	m2 := uuid.New()
	r.Join(m1, newSession("alice", true))
	r.Join(m1, newSession("bob", false))
	r.Join(m2, newSession("carol", true))

	snapshots := r.Stats()
	require.Len(t, snapshots, 2)

	byMeeting := make(map[uuid.UUID]Snapshot)
	for _, snap := range snapshots {
		byMeeting[snap.MeetingID] = snap
	}
	assert.Len(t, byMeeting[m1].Participants, 2)
	assert.Len(t, byMeeting[m2].Participants, 1)
	assert.False(t, byMeeting[m1].StartedAt.IsZero())
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	meetingID := uuid.New()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s := newSession("user", false)
			r.Join(meetingID, s)
			r.SetAudio(meetingID, s.ConnectionID, false)
			r.Leave(meetingID, s.ConnectionID)
		}()
	}
	wg.Wait()

	rooms, participants := r.Counts()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, participants)
}

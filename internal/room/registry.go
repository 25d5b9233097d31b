package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the single synchronization point for all live room state.
// Every mutation is a short, in-memory operation under one lock; no I/O
// happens while the lock is held. Callers receive copies, never pointers
// into the registry's own maps.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]*room),
	}
}

// Join inserts a session into the room for meetingID, creating the room if
// it does not exist. The returned roster is captured before the insert, so
// it never contains the joining session itself. created reports whether this
// join brought the room into existence.
func (r *Registry) Join(meetingID uuid.UUID, session Session) (existing []Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		rm = &room{
			meetingID: meetingID,
			startedAt: time.Now(),
			sessions:  make(map[uuid.UUID]*Session),
		}
		r.rooms[meetingID] = rm
		created = true
	}

	existing = make([]Session, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		existing = append(existing, *s)
	}

	s := session
	rm.sessions[session.ConnectionID] = &s

	return existing, created
}

// Leave removes a session from the room. When the roster empties the room is
// deleted immediately; there is no grace period, a reconnect simply creates a
// fresh room under the same meeting ID. Leaving a room the connection is not
// in is a no-op.
func (r *Registry) Leave(meetingID, connectionID uuid.UUID) (removed Session, ok bool, emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[meetingID]
	if !exists {
		return Session{}, false, false
	}

	s, exists := rm.sessions[connectionID]
	if !exists {
		return Session{}, false, false
	}

	removed = *s
	delete(rm.sessions, connectionID)

	if len(rm.sessions) == 0 {
		delete(r.rooms, meetingID)
		emptied = true
	}

	return removed, true, emptied
}

// Delete removes a room and its entire roster, returning the sessions that
// were detached. Used by end-meeting teardown.
func (r *Registry) Delete(meetingID uuid.UUID) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil
	}

	detached := make([]Session, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		detached = append(detached, *s)
	}
	delete(r.rooms, meetingID)

	return detached
}

// Get returns a copy of one session in a room
func (r *Registry) Get(meetingID, connectionID uuid.UUID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return Session{}, false
	}
	s, ok := rm.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Member reports whether a connection is currently in the room
func (r *Registry) Member(meetingID, connectionID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return false
	}
	_, ok = rm.sessions[connectionID]
	return ok
}

// Members returns a copy of the current roster for a room
func (r *Registry) Members(meetingID uuid.UUID) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil
	}

	members := make([]Session, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		members = append(members, *s)
	}
	return members
}

// SetAudio updates the audio flag on a session. Repeated identical toggles
// are harmless. Returns false if the session is not in the room.
func (r *Registry) SetAudio(meetingID, connectionID uuid.UUID, enabled bool) bool {
	return r.setMedia(meetingID, connectionID, func(s *Session) { s.AudioEnabled = enabled })
}

// SetVideo updates the video flag on a session
func (r *Registry) SetVideo(meetingID, connectionID uuid.UUID, enabled bool) bool {
	return r.setMedia(meetingID, connectionID, func(s *Session) { s.VideoEnabled = enabled })
}

func (r *Registry) setMedia(meetingID, connectionID uuid.UUID, mutate func(*Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return false
	}
	s, ok := rm.sessions[connectionID]
	if !ok {
		return false
	}
	mutate(s)
	return true
}

// Stats returns a snapshot of every active room. Administrative read.
func (r *Registry) Stats() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(r.rooms))
	for _, rm := range r.rooms {
		snap := Snapshot{
			MeetingID:    rm.meetingID,
			StartedAt:    rm.startedAt,
			Participants: make([]Session, 0, len(rm.sessions)),
		}
		for _, s := range rm.sessions {
			snap.Participants = append(snap.Participants, *s)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// Counts returns the number of active rooms and total connected participants
func (r *Registry) Counts() (rooms int, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rm := range r.rooms {
		participants += len(rm.sessions)
	}
	return len(r.rooms), participants
}

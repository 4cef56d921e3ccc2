package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/stagegate/model"
)

// Metrics is the subset of instrumentation the hub reports to.
type Metrics interface {
	RecordRealtimeEvent(kind string)
	RecordRealtimeDrop()
	SetRealtimePresence(rooms, members int)
}

type roomKey struct {
	resourceType string
	resourceID   string
}

// Session is one connected client. Events are delivered through a buffered
// channel; a slow consumer has events dropped rather than blocking the hub.
type Session struct {
	UserID   string
	UserName string

	send   chan Event
	closed bool // guarded by the hub mutex
}

// Events returns the channel the hub delivers on. It is closed when the
// session is unregistered.
func (s *Session) Events() <-chan Event {
	return s.send
}

// Hub multiplexes events between room members. All membership state is
// process-local and guarded by a single mutex; membership changes are
// infrequent relative to relay traffic.
type Hub struct {
	mu       sync.Mutex
	rooms    map[roomKey]map[*Session]time.Time // value is the join time
	sessions map[*Session]map[roomKey]struct{}

	bufSize int
	logger  *zap.Logger
	metrics Metrics
	now     func() time.Time
}

// NewHub creates a hub. metrics may be nil.
func NewHub(sendBufferSize int, logger *zap.Logger, metrics Metrics) *Hub {
	if sendBufferSize < 1 {
		sendBufferSize = 1
	}
	return &Hub{
		rooms:    make(map[roomKey]map[*Session]time.Time),
		sessions: make(map[*Session]map[roomKey]struct{}),
		bufSize:  sendBufferSize,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Register creates a session for a connected client. The session belongs to
// no rooms until it joins some.
func (h *Hub) Register(userID, userName string) *Session {
	s := &Session{
		UserID:   userID,
		UserName: userName,
		send:     make(chan Event, h.bufSize),
	}
	h.mu.Lock()
	h.sessions[s] = make(map[roomKey]struct{})
	h.mu.Unlock()
	return s
}

// Unregister removes the session from every room it joined, broadcasting
// user-left to each, and closes its event channel.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.sessions[s] {
		h.removeFromRoom(s, key)
	}
	delete(h.sessions, s)
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	h.updateGauges()
}

// Join adds the session to a room. Current members receive user-joined; the
// joiner receives a presence-update snapshot of the members already present,
// not including itself. A prior session of the same user in the room is
// displaced.
func (h *Hub) Join(s *Session, resourceType, resourceID string) {
	key := roomKey{resourceType, resourceID}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, registered := h.sessions[s]; !registered {
		return
	}

	room, ok := h.rooms[key]
	if !ok {
		room = make(map[*Session]time.Time)
		h.rooms[key] = room
	}

	for other := range room {
		if other.UserID == s.UserID && other != s {
			delete(room, other)
			delete(h.sessions[other], key)
		}
	}

	snapshot := make(presencePayload, 0, len(room))
	for member, joinedAt := range room {
		snapshot = append(snapshot, model.PresenceEntry{
			UserID:       member.UserID,
			UserName:     member.UserName,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Timestamp:    joinedAt,
		})
	}

	joinedAt := h.now().UTC()
	room[s] = joinedAt
	h.sessions[s][key] = struct{}{}

	joined := newEvent(EventUserJoined, resourceType, resourceID, model.PresenceEntry{
		UserID:       s.UserID,
		UserName:     s.UserName,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Timestamp:    joinedAt,
	})
	for other := range room {
		if other != s {
			h.deliver(other, joined)
		}
	}
	h.deliver(s, newEvent(EventPresenceUpdate, resourceType, resourceID, snapshot))

	h.updateGauges()
}

// Leave removes the session from a room and broadcasts user-left to the
// remaining members. Leaving a room the session is not in is a no-op.
func (h *Hub) Leave(s *Session, resourceType, resourceID string) {
	key := roomKey{resourceType, resourceID}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, member := h.sessions[s][key]; !member {
		return
	}
	h.removeFromRoom(s, key)
	delete(h.sessions[s], key)
	h.updateGauges()
}

// Relay forwards a payload verbatim to every other member of the room. The
// sender must be a member; there is no acknowledgment and no cross-event
// ordering guarantee.
func (h *Hub) Relay(s *Session, resourceType, resourceID, kind string, payload json.RawMessage) {
	if !IsRelayKind(kind) {
		return
	}
	key := roomKey{resourceType, resourceID}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, member := h.sessions[s][key]; !member {
		return
	}
	evt := Event{Kind: kind, ResourceType: resourceType, ResourceID: resourceID, Payload: payload}
	for other := range h.rooms[key] {
		if other != s {
			h.deliver(other, evt)
		}
	}
	if h.metrics != nil {
		h.metrics.RecordRealtimeEvent(kind)
	}
}

// AnnounceStatus publishes a server-originated status-change event to every
// member of the room, including any session belonging to the acting user.
// It satisfies the Announcer dependency of the progression and document
// components.
func (h *Hub) AnnounceStatus(resourceType, resourceID string, payload map[string]any) {
	evt := newEvent(EventStatusChange, resourceType, resourceID, payload)
	key := roomKey{resourceType, resourceID}

	h.mu.Lock()
	defer h.mu.Unlock()

	for member := range h.rooms[key] {
		h.deliver(member, evt)
	}
	if h.metrics != nil {
		h.metrics.RecordRealtimeEvent(EventStatusChange)
	}
}

// removeFromRoom deletes the session's membership and broadcasts user-left.
// Caller holds the mutex.
func (h *Hub) removeFromRoom(s *Session, key roomKey) {
	room, ok := h.rooms[key]
	if !ok {
		return
	}
	if _, member := room[s]; !member {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, key)
		return
	}
	left := newEvent(EventUserLeft, key.resourceType, key.resourceID, userLeftPayload{UserID: s.UserID})
	for other := range room {
		h.deliver(other, left)
	}
}

// deliver sends an event without blocking. Caller holds the mutex, so the
// closed flag is stable.
func (h *Hub) deliver(s *Session, evt Event) {
	if s.closed {
		return
	}
	select {
	case s.send <- evt:
	default:
		if h.metrics != nil {
			h.metrics.RecordRealtimeDrop()
		}
		h.logger.Debug("realtime event dropped",
			zap.String("kind", evt.Kind),
			zap.String("user_id", s.UserID),
		)
	}
}

// updateGauges reports room and membership counts. Caller holds the mutex.
func (h *Hub) updateGauges() {
	if h.metrics == nil {
		return
	}
	members := 0
	for _, room := range h.rooms {
		members += len(room)
	}
	h.metrics.SetRealtimePresence(len(h.rooms), members)
}

// Package realtime implements the collaboration coordinator: a process-local
// pub/sub multiplexer over rooms keyed by (resourceType, resourceId). It
// tracks who is present in each room and relays ephemeral events between
// members. Nothing here is persisted; reconnecting clients re-join the rooms
// they care about.
package realtime

import (
	"encoding/json"

	"github.com/brightpath/stagegate/model"
)

// Wire event kinds.
const (
	EventJoinResource   = "join-resource"
	EventLeaveResource  = "leave-resource"
	EventPresenceUpdate = "presence-update"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventTyping         = "typing"
	EventFieldUpdate    = "field-update"
	EventStatusChange   = "status-change"
)

// relayKinds are the client-originated kinds forwarded verbatim to the other
// members of a room.
var relayKinds = map[string]struct{}{
	EventTyping:       {},
	EventFieldUpdate:  {},
	EventStatusChange: {},
}

// IsRelayKind reports whether the kind is forwarded between room members.
func IsRelayKind(kind string) bool {
	_, ok := relayKinds[kind]
	return ok
}

// Event is the wire envelope for every realtime message in both directions.
// Payload is carried verbatim for relayed kinds.
type Event struct {
	Kind         string          `json:"kind"`
	ResourceType string          `json:"resourceType,omitempty"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// newEvent builds a server-originated event with a marshaled payload. The
// payload types used here always serialize.
func newEvent(kind, resourceType, resourceID string, payload any) Event {
	raw, _ := json.Marshal(payload)
	return Event{
		Kind:         kind,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Payload:      raw,
	}
}

// userLeftPayload is the body of a user-left event.
type userLeftPayload struct {
	UserID string `json:"userId"`
}

// presencePayload is the body of a presence-update event.
type presencePayload []model.PresenceEntry

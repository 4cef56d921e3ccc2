package model

import "time"

// Well-known resource room types. Rooms are keyed by (resourceType,
// resourceId); any string pair forms a valid room, these are the ones the
// workflow core itself announces into.
const (
	ResourceTypeParticipant = "participant"
	ResourceTypeDocument    = "document"
)

// PresenceEntry describes one user currently present in a resource room.
// Presence is ephemeral: entries exist only while the owning connection is
// open and are never persisted.
type PresenceEntry struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	Timestamp    time.Time `json:"timestamp"`
}

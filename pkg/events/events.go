// Package events defines the realtime event kinds, their payloads and the
// JSON frames exchanged with browser connections.
//
// Payloads announce that something changed. Subscribers are expected to
// re-fetch the read endpoints instead of applying the payload to local state,
// so a lost or reordered event never leaves a client with divergent data.
package events

import "time"

// Kind tags the category of state change an event announces.
type Kind string

// Event kinds delivered to organization rooms. Creation and deletion of
// incidents and maintenance windows are announced with the updated kinds.
const (
	ServiceStatusChanged Kind = "service-status-changed"
	IncidentUpdated      Kind = "incident-updated"
	MaintenanceUpdated   Kind = "maintenance-updated"
	TeamMemberAdded      Kind = "team-member-added"
	TeamMemberRemoved    Kind = "team-member-removed"
	TeamMemberRoleChange Kind = "team-member-role-changed"
	TeamCreated          Kind = "team-created"
	TeamUpdated          Kind = "team-updated"
	TeamDeleted          Kind = "team-deleted"

	// Connected is the handshake acknowledgement sent once per connection.
	Connected Kind = "connected"
)

// Kinds lists every room-scoped kind, in a stable order.
var Kinds = []Kind{
	ServiceStatusChanged,
	IncidentUpdated,
	MaintenanceUpdated,
	TeamMemberAdded, TeamMemberRemoved, TeamMemberRoleChange,
	TeamCreated, TeamUpdated, TeamDeleted,
}

// Valid reports whether k is a known room-scoped kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one announcement destined for a room.
type Event struct {
	Kind      Kind      `json:"kind"`
	Room      string    `json:"room"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds an event stamped with the current UTC time.
func New(kind Kind, room string, payload any) Event {
	return Event{Kind: kind, Room: room, Payload: payload, Timestamp: time.Now().UTC()}
}

// ServiceStatusPayload accompanies ServiceStatusChanged.
type ServiceStatusPayload struct {
	ServiceID string    `json:"serviceId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IncidentPayload accompanies IncidentUpdated.
type IncidentPayload struct {
	IncidentID string    `json:"incidentId"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MaintenancePayload accompanies MaintenanceUpdated.
type MaintenancePayload struct {
	MaintenanceID string    `json:"maintenanceId"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TeamMemberPayload accompanies the team member kinds. NewRole is set only
// for role changes.
type TeamMemberPayload struct {
	TeamID     string    `json:"teamId"`
	MemberID   string    `json:"memberId"`
	MemberData any       `json:"memberData,omitempty"`
	NewRole    string    `json:"newRole,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TeamPayload accompanies the team lifecycle kinds.
type TeamPayload struct {
	TeamID    string    `json:"teamId"`
	TeamData  any       `json:"teamData,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Package bridge turns committed writes into room events.
//
// Handlers call a Bridge method only after the store reports success. The
// Bridge never returns an error: a failure to publish is logged and the
// write's response is unaffected.
package bridge

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/rooms"
	"github.com/agentstation/statuspage/pkg/events"
)

// Publisher is the part of the hub the bridge needs.
type Publisher interface {
	Publish(room string, e events.Event)
}

// Bridge publishes one event per committed mutation.
type Bridge struct {
	pub    Publisher
	logger *zerolog.Logger
	now    func() time.Time
}

// New creates a Bridge over a publisher.
func New(pub Publisher, logger *zerolog.Logger) *Bridge {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bridge{
		pub:    pub,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Committed runs publish only when the write succeeded.
func Committed(err error, publish func()) {
	if err != nil {
		return
	}
	publish()
}

// emit publishes to the organization's room, recovering from any panic in
// the publisher.
func (b *Bridge) emit(slug string, kind events.Kind, payload any) {
	room := rooms.RoomName(slug)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("room", room).
				Str("kind", string(kind)).
				Str("panic", fmt.Sprint(r)).
				Msg("Realtime publish panicked")
		}
	}()
	if slug == "" {
		b.logger.Error().Str("kind", string(kind)).Msg("Realtime publish skipped: no organization")
		return
	}
	b.pub.Publish(room, events.Event{
		Kind:      kind,
		Room:      room,
		Payload:   payload,
		Timestamp: b.now(),
	})
}

// ServiceStatusChanged announces a created or updated service status.
func (b *Bridge) ServiceStatusChanged(slug, serviceID, status string) {
	b.emit(slug, events.ServiceStatusChanged, events.ServiceStatusPayload{
		ServiceID: serviceID,
		Status:    status,
		UpdatedAt: b.now(),
	})
}

// IncidentCreated announces a new incident. Browsers only listen for
// incident-updated, so creation travels under that kind.
func (b *Bridge) IncidentCreated(slug, incidentID, status, message string) {
	b.IncidentUpdated(slug, incidentID, status, message)
}

// IncidentDeleted announces a removed incident.
func (b *Bridge) IncidentDeleted(slug, incidentID, status string) {
	b.IncidentUpdated(slug, incidentID, status, "Incident deleted")
}

// IncidentUpdated announces an incident status change or timeline update.
func (b *Bridge) IncidentUpdated(slug, incidentID, status, message string) {
	b.emit(slug, events.IncidentUpdated, events.IncidentPayload{
		IncidentID: incidentID,
		Status:     status,
		Message:    message,
		UpdatedAt:  b.now(),
	})
}

// MaintenanceCreated announces a new maintenance window.
func (b *Bridge) MaintenanceCreated(slug, maintenanceID, status string) {
	b.maintenance(slug, maintenanceID, status)
}

// MaintenanceUpdated announces a changed maintenance window.
func (b *Bridge) MaintenanceUpdated(slug, maintenanceID, status string) {
	b.maintenance(slug, maintenanceID, status)
}

// MaintenanceDeleted announces a removed maintenance window.
func (b *Bridge) MaintenanceDeleted(slug, maintenanceID, status string) {
	b.maintenance(slug, maintenanceID, status)
}

// maintenance announces every window change as maintenance-updated, the
// only maintenance kind browsers listen for.
func (b *Bridge) maintenance(slug, id, status string) {
	b.emit(slug, events.MaintenanceUpdated, events.MaintenancePayload{
		MaintenanceID: id,
		Status:        status,
		UpdatedAt:     b.now(),
	})
}

// TeamMemberAdded announces a new member; data is the member as returned to
// the dashboard.
func (b *Bridge) TeamMemberAdded(slug, teamID, memberID string, data any) {
	b.emit(slug, events.TeamMemberAdded, events.TeamMemberPayload{
		TeamID: teamID, MemberID: memberID, MemberData: data, UpdatedAt: b.now(),
	})
}

// TeamMemberRemoved announces a removed member.
func (b *Bridge) TeamMemberRemoved(slug, teamID, memberID string) {
	b.emit(slug, events.TeamMemberRemoved, events.TeamMemberPayload{
		TeamID: teamID, MemberID: memberID, UpdatedAt: b.now(),
	})
}

// TeamMemberRoleChanged announces a member's new role.
func (b *Bridge) TeamMemberRoleChanged(slug, teamID, memberID, role string) {
	b.emit(slug, events.TeamMemberRoleChange, events.TeamMemberPayload{
		TeamID: teamID, MemberID: memberID, NewRole: role, UpdatedAt: b.now(),
	})
}

// TeamCreated announces a new team.
func (b *Bridge) TeamCreated(slug, teamID string, data any) {
	b.emit(slug, events.TeamCreated, events.TeamPayload{TeamID: teamID, TeamData: data, UpdatedAt: b.now()})
}

// TeamUpdated announces a renamed or redescribed team.
func (b *Bridge) TeamUpdated(slug, teamID string, data any) {
	b.emit(slug, events.TeamUpdated, events.TeamPayload{TeamID: teamID, TeamData: data, UpdatedAt: b.now()})
}

// TeamDeleted announces a deleted team.
func (b *Bridge) TeamDeleted(slug, teamID string) {
	b.emit(slug, events.TeamDeleted, events.TeamPayload{TeamID: teamID, UpdatedAt: b.now()})
}

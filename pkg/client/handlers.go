package client

import (
	"github.com/agentstation/statuspage/pkg/events"
)

// Member and team actions reported to OnTeamMemberUpdate and OnTeamUpdate.
const (
	ActionAdded       = "added"
	ActionRemoved     = "removed"
	ActionRoleChanged = "role-changed"
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionDeleted     = "deleted"
)

// TeamMemberUpdate describes a membership change. For role changes
// MemberData is {"role": <new role>}.
type TeamMemberUpdate struct {
	TeamID     string
	MemberID   string
	Action     string
	MemberData any
}

// TeamUpdate describes a team lifecycle change.
type TeamUpdate struct {
	TeamID   string
	Action   string
	TeamData any
}

// Handlers are the callbacks of one subscriber. Nil callbacks are skipped.
// Callbacks run on the connection's read goroutine in arrival order and
// must not block.
type Handlers struct {
	OnServiceStatusChange func(events.ServiceStatusPayload)
	// OnIncidentUpdate receives created and updated incidents.
	OnIncidentUpdate func(events.IncidentPayload)
	// OnMaintenanceUpdate receives created, updated and deleted windows.
	OnMaintenanceUpdate func(events.MaintenancePayload)
	OnTeamMemberUpdate  func(TeamMemberUpdate)
	OnTeamUpdate        func(TeamUpdate)
	// OnEvent receives every event, before the typed callbacks.
	OnEvent func(events.Message)
}

// dispatch invokes the callbacks matching msg.
func (h Handlers) dispatch(msg events.Message, payload any) {
	if h.OnEvent != nil {
		h.OnEvent(msg)
	}
	switch p := payload.(type) {
	case *events.ServiceStatusPayload:
		if h.OnServiceStatusChange != nil {
			h.OnServiceStatusChange(*p)
		}
	case *events.IncidentPayload:
		if h.OnIncidentUpdate != nil {
			h.OnIncidentUpdate(*p)
		}
	case *events.MaintenancePayload:
		if h.OnMaintenanceUpdate != nil {
			h.OnMaintenanceUpdate(*p)
		}
	case *events.TeamMemberPayload:
		if h.OnTeamMemberUpdate != nil {
			h.OnTeamMemberUpdate(memberUpdate(msg.Event, p))
		}
	case *events.TeamPayload:
		if h.OnTeamUpdate != nil {
			h.OnTeamUpdate(teamUpdate(msg.Event, p))
		}
	}
}

func memberUpdate(kind events.Kind, p *events.TeamMemberPayload) TeamMemberUpdate {
	u := TeamMemberUpdate{TeamID: p.TeamID, MemberID: p.MemberID}
	switch kind {
	case events.TeamMemberAdded:
		u.Action = ActionAdded
		u.MemberData = p.MemberData
	case events.TeamMemberRemoved:
		u.Action = ActionRemoved
	case events.TeamMemberRoleChange:
		u.Action = ActionRoleChanged
		u.MemberData = map[string]any{"role": p.NewRole}
	}
	return u
}

func teamUpdate(kind events.Kind, p *events.TeamPayload) TeamUpdate {
	u := TeamUpdate{TeamID: p.TeamID}
	switch kind {
	case events.TeamCreated:
		u.Action = ActionCreated
		u.TeamData = p.TeamData
	case events.TeamUpdated:
		u.Action = ActionUpdated
		u.TeamData = p.TeamData
	case events.TeamDeleted:
		u.Action = ActionDeleted
	}
	return u
}

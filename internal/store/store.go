// Package store defines persistence for the statuspage domain.
//
// Implementations live in sub-packages: memory for tests and single-node
// demos, gormstore for MySQL or SQLite through gorm. Lookups of missing
// records return *errors.NotFoundError.
package store

import (
	"context"

	"github.com/agentstation/statuspage/pkg/status"
)

// Store is the data-access layer used by the HTTP handlers.
type Store interface {
	OrganizationStore
	ServiceStore
	IncidentStore
	MaintenanceStore
	MemberStore

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases the backing store.
	Close() error
}

// OrganizationStore persists organizations (teams).
type OrganizationStore interface {
	Organization(ctx context.Context, slug string) (*status.Organization, error)
	OrganizationByID(ctx context.Context, id string) (*status.Organization, error)
	Organizations(ctx context.Context) ([]status.Organization, error)
	// CreateOrganization fills ID and timestamps. A duplicate slug is an
	// AlreadyExistsError.
	CreateOrganization(ctx context.Context, org *status.Organization) error
	// CreateTeam creates org together with its owner membership. Either
	// both are stored or neither is.
	CreateTeam(ctx context.Context, org *status.Organization, owner *status.Member) error
	UpdateOrganization(ctx context.Context, org *status.Organization) error
	// DeleteOrganization removes the organization with its services,
	// incidents, maintenance windows and members.
	DeleteOrganization(ctx context.Context, id string) error
}

// ServiceStore persists services.
type ServiceStore interface {
	// Services lists an organization's services, oldest first. An empty
	// organization id lists every service.
	Services(ctx context.Context, orgID string) ([]status.Service, error)
	Service(ctx context.Context, id string) (*status.Service, error)
	CreateService(ctx context.Context, svc *status.Service) error
	UpdateService(ctx context.Context, svc *status.Service) error
	DeleteService(ctx context.Context, id string) error
}

// IncidentStore persists incidents and their timeline.
type IncidentStore interface {
	// Incidents lists incidents newest first, each with its updates newest
	// first.
	Incidents(ctx context.Context, orgID string) ([]status.Incident, error)
	Incident(ctx context.Context, id string) (*status.Incident, error)
	CreateIncident(ctx context.Context, inc *status.Incident) error
	// AddIncidentUpdate appends to the timeline and moves the incident to the
	// update's status. Resolving sets ResolvedAt.
	AddIncidentUpdate(ctx context.Context, upd *status.IncidentUpdate) (*status.Incident, error)
	// SetIncidentStatus moves the incident to st without a timeline entry.
	// Resolving sets ResolvedAt.
	SetIncidentStatus(ctx context.Context, id string, st status.IncidentStatus) (*status.Incident, error)
	// DeleteIncident removes the incident with its timeline.
	DeleteIncident(ctx context.Context, id string) error
}

// MaintenanceStore persists maintenance windows.
type MaintenanceStore interface {
	// Maintenances lists windows by scheduled start, latest first.
	Maintenances(ctx context.Context, orgID string) ([]status.Maintenance, error)
	Maintenance(ctx context.Context, id string) (*status.Maintenance, error)
	CreateMaintenance(ctx context.Context, m *status.Maintenance) error
	UpdateMaintenance(ctx context.Context, m *status.Maintenance) error
	DeleteMaintenance(ctx context.Context, id string) error
}

// MemberStore persists organization memberships.
type MemberStore interface {
	// Members lists an organization's members, earliest joined first.
	Members(ctx context.Context, orgID string) ([]status.Member, error)
	Member(ctx context.Context, id string) (*status.Member, error)
	MemberByUser(ctx context.Context, orgID, userID string) (*status.Member, error)
	// MembershipsOf lists every membership of a user.
	MembershipsOf(ctx context.Context, userID string) ([]status.Member, error)
	// AddMember fails with AlreadyExistsError if the user is already a member.
	AddMember(ctx context.Context, m *status.Member) error
	UpdateMemberRole(ctx context.Context, id string, role status.Role) (*status.Member, error)
	RemoveMember(ctx context.Context, id string) error
	// TransferOwnership makes member toID an OWNER and demotes fromID to
	// ADMIN in one step. Both must belong to the same organization. When
	// the ids are equal only the promotion happens and demoted is nil.
	TransferOwnership(ctx context.Context, fromID, toID string) (promoted, demoted *status.Member, err error)
}

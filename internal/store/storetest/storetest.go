// Package storetest is a conformance suite every store.Store must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises every Store operation against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Organizations", func(t *testing.T) { testOrganizations(t, newStore(t)) })
	t.Run("Services", func(t *testing.T) { testServices(t, newStore(t)) })
	t.Run("Incidents", func(t *testing.T) { testIncidents(t, newStore(t)) })
	t.Run("Maintenance", func(t *testing.T) { testMaintenance(t, newStore(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newStore(t)) })
	t.Run("Teams", func(t *testing.T) { testTeams(t, newStore(t)) })
	t.Run("TransferOwnership", func(t *testing.T) { testTransferOwnership(t, newStore(t)) })
	t.Run("DeleteOrganizationCascades", func(t *testing.T) { testCascade(t, newStore(t)) })
}

func mustOrg(t *testing.T, s store.Store, slug string) *status.Organization {
	t.Helper()
	org := &status.Organization{Name: slug + " inc", Slug: slug}
	require.NoError(t, s.CreateOrganization(context.Background(), org))
	return org
}

func testOrganizations(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	org := mustOrg(t, s, "demo")
	assert.NotEmpty(t, org.ID)
	assert.False(t, org.CreatedAt.IsZero())

	got, err := s.Organization(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	byID, err := s.OrganizationByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", byID.Slug)

	err = s.CreateOrganization(ctx, &status.Organization{Name: "dup", Slug: "demo"})
	assert.True(t, errors.IsAlreadyExists(err))

	_, err = s.Organization(ctx, "nope")
	assert.True(t, errors.IsNotFound(err))

	got.Name = "Renamed"
	got.Description = "new"
	require.NoError(t, s.UpdateOrganization(ctx, got))
	again, err := s.Organization(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Name)
	assert.Equal(t, "new", again.Description)

	mustOrg(t, s, "acme")
	all, err := s.Organizations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "demo", all[0].Slug)

	assert.True(t, errors.IsNotFound(s.UpdateOrganization(ctx, &status.Organization{ID: "missing"})))
	assert.True(t, errors.IsNotFound(s.DeleteOrganization(ctx, "missing")))
}

func testServices(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := mustOrg(t, s, "demo")
	other := mustOrg(t, s, "acme")

	api := &status.Service{OrganizationID: org.ID, Name: "API"}
	require.NoError(t, s.CreateService(ctx, api))
	assert.Equal(t, status.ServiceOperational, api.Status, "status defaults to operational")
	web := &status.Service{OrganizationID: org.ID, Name: "Web", Status: status.ServiceMajorOutage}
	require.NoError(t, s.CreateService(ctx, web))
	require.NoError(t, s.CreateService(ctx, &status.Service{OrganizationID: other.ID, Name: "Other"}))

	list, err := s.Services(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "API", list[0].Name)
	assert.Equal(t, "Web", list[1].Name)

	all, err := s.Services(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	api.Status = status.ServiceDegradedPerformance
	require.NoError(t, s.UpdateService(ctx, api))
	got, err := s.Service(ctx, api.ID)
	require.NoError(t, err)
	assert.Equal(t, status.ServiceDegradedPerformance, got.Status)
	assert.Equal(t, org.ID, got.OrganizationID)

	require.NoError(t, s.DeleteService(ctx, web.ID))
	_, err = s.Service(ctx, web.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.DeleteService(ctx, web.ID)))
	assert.True(t, errors.IsNotFound(s.UpdateService(ctx, &status.Service{ID: "missing"})))

	err = s.CreateService(ctx, &status.Service{OrganizationID: "missing", Name: "x"})
	assert.True(t, errors.IsNotFound(err))
}

func testIncidents(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := mustOrg(t, s, "demo")
	svc := &status.Service{OrganizationID: org.ID, Name: "API"}
	require.NoError(t, s.CreateService(ctx, svc))

	first := &status.Incident{OrganizationID: org.ID, Title: "Old", ServiceIDs: []string{svc.ID}}
	require.NoError(t, s.CreateIncident(ctx, first))
	assert.Equal(t, status.IncidentInvestigating, first.Status)
	assert.Equal(t, status.SeverityMinor, first.Severity)

	second := &status.Incident{OrganizationID: org.ID, Title: "New", Severity: status.SeverityCritical}
	require.NoError(t, s.CreateIncident(ctx, second))

	list, err := s.Incidents(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "New", list[0].Title, "newest first")
	assert.Equal(t, []string{svc.ID}, list[1].ServiceIDs)

	inc, err := s.AddIncidentUpdate(ctx, &status.IncidentUpdate{IncidentID: first.ID, Message: "found it", Status: status.IncidentIdentified})
	require.NoError(t, err)
	assert.Equal(t, status.IncidentIdentified, inc.Status)
	assert.Nil(t, inc.ResolvedAt)

	inc, err = s.AddIncidentUpdate(ctx, &status.IncidentUpdate{IncidentID: first.ID, Message: "fixed", Status: status.IncidentResolved})
	require.NoError(t, err)
	assert.Equal(t, status.IncidentResolved, inc.Status)
	require.NotNil(t, inc.ResolvedAt)

	got, err := s.Incident(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Updates, 2)
	assert.Equal(t, "fixed", got.Updates[0].Message, "updates newest first")
	assert.Equal(t, "found it", got.Updates[1].Message)
	assert.NotNil(t, got.ResolvedAt)

	_, err = s.AddIncidentUpdate(ctx, &status.IncidentUpdate{IncidentID: "missing", Status: status.IncidentResolved})
	assert.True(t, errors.IsNotFound(err))
	_, err = s.Incident(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))

	moved, err := s.SetIncidentStatus(ctx, second.ID, status.IncidentMonitoring)
	require.NoError(t, err)
	assert.Equal(t, status.IncidentMonitoring, moved.Status)
	assert.Nil(t, moved.ResolvedAt)
	assert.Empty(t, moved.Updates, "a status change adds no timeline entry")
	moved, err = s.SetIncidentStatus(ctx, second.ID, status.IncidentResolved)
	require.NoError(t, err)
	assert.NotNil(t, moved.ResolvedAt)
	_, err = s.SetIncidentStatus(ctx, "missing", status.IncidentResolved)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.DeleteIncident(ctx, first.ID))
	_, err = s.Incident(ctx, first.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.DeleteIncident(ctx, first.ID)))
	left, err := s.Incidents(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, second.ID, left[0].ID)
}

func testMaintenance(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := mustOrg(t, s, "demo")
	svc := &status.Service{OrganizationID: org.ID, Name: "DB"}
	require.NoError(t, s.CreateService(ctx, svc))

	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	early := &status.Maintenance{OrganizationID: org.ID, Title: "early", ScheduledStart: base, ScheduledEnd: base.Add(time.Hour), ServiceIDs: []string{svc.ID}}
	late := &status.Maintenance{OrganizationID: org.ID, Title: "late", ScheduledStart: base.Add(48 * time.Hour), ScheduledEnd: base.Add(49 * time.Hour)}
	require.NoError(t, s.CreateMaintenance(ctx, early))
	require.NoError(t, s.CreateMaintenance(ctx, late))
	assert.Equal(t, status.MaintenanceScheduled, early.Status)

	list, err := s.Maintenances(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "late", list[0].Title, "latest start first")
	assert.Equal(t, []string{svc.ID}, list[1].ServiceIDs)

	early.Status = status.MaintenanceInProgress
	early.ServiceIDs = nil
	require.NoError(t, s.UpdateMaintenance(ctx, early))
	got, err := s.Maintenance(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, status.MaintenanceInProgress, got.Status)
	assert.Empty(t, got.ServiceIDs)
	assert.True(t, got.ScheduledStart.Equal(base))

	require.NoError(t, s.DeleteMaintenance(ctx, late.ID))
	_, err = s.Maintenance(ctx, late.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.DeleteMaintenance(ctx, late.ID)))
}

func testMembers(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := mustOrg(t, s, "demo")
	acme := mustOrg(t, s, "acme")

	owner := &status.Member{OrganizationID: org.ID, UserID: "u1", Name: "Ada", Email: "ada@example.com", Role: status.RoleOwner}
	require.NoError(t, s.AddMember(ctx, owner))
	plain := &status.Member{OrganizationID: org.ID, UserID: "u2", Name: "Bob"}
	require.NoError(t, s.AddMember(ctx, plain))
	assert.Equal(t, status.RoleMember, plain.Role)
	require.NoError(t, s.AddMember(ctx, &status.Member{OrganizationID: acme.ID, UserID: "u1", Role: status.RoleAdmin}))

	err := s.AddMember(ctx, &status.Member{OrganizationID: org.ID, UserID: "u1"})
	assert.True(t, errors.IsAlreadyExists(err))

	members, err := s.Members(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID)

	mine, err := s.MembershipsOf(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	byUser, err := s.MemberByUser(ctx, org.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, plain.ID, byUser.ID)
	_, err = s.MemberByUser(ctx, org.ID, "u9")
	assert.True(t, errors.IsNotFound(err))

	updated, err := s.UpdateMemberRole(ctx, plain.ID, status.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, status.RoleAdmin, updated.Role)
	got, err := s.Member(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RoleAdmin, got.Role)

	require.NoError(t, s.RemoveMember(ctx, plain.ID))
	assert.True(t, errors.IsNotFound(s.RemoveMember(ctx, plain.ID)))
	_, err = s.UpdateMemberRole(ctx, plain.ID, status.RoleOwner)
	assert.True(t, errors.IsNotFound(err))
}

func testCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := mustOrg(t, s, "doomed")
	keep := mustOrg(t, s, "keep")

	require.NoError(t, s.CreateService(ctx, &status.Service{OrganizationID: org.ID, Name: "API"}))
	require.NoError(t, s.CreateService(ctx, &status.Service{OrganizationID: keep.ID, Name: "API"}))
	require.NoError(t, s.CreateIncident(ctx, &status.Incident{OrganizationID: org.ID, Title: "x"}))
	require.NoError(t, s.CreateMaintenance(ctx, &status.Maintenance{OrganizationID: org.ID, Title: "m"}))
	require.NoError(t, s.AddMember(ctx, &status.Member{OrganizationID: org.ID, UserID: "u1"}))

	require.NoError(t, s.DeleteOrganization(ctx, org.ID))

	_, err := s.OrganizationByID(ctx, org.ID)
	assert.True(t, errors.IsNotFound(err))
	svcs, _ := s.Services(ctx, org.ID)
	assert.Empty(t, svcs)
	incs, _ := s.Incidents(ctx, org.ID)
	assert.Empty(t, incs)
	ms, _ := s.Maintenances(ctx, org.ID)
	assert.Empty(t, ms)
	members, _ := s.Members(ctx, org.ID)
	assert.Empty(t, members)

	kept, _ := s.Services(ctx, keep.ID)
	assert.Len(t, kept, 1)
}

func testTeams(t *testing.T, s store.Store) {
	ctx := context.Background()

	org := &status.Organization{Name: "Platform", Slug: "platform"}
	owner := &status.Member{UserID: "u1", Name: "Ada", Role: status.RoleOwner}
	require.NoError(t, s.CreateTeam(ctx, org, owner))
	assert.Equal(t, org.ID, owner.OrganizationID)

	members, err := s.Members(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, status.RoleOwner, members[0].Role)

	err = s.CreateTeam(ctx, &status.Organization{Name: "Again", Slug: "platform"}, &status.Member{UserID: "u2"})
	assert.True(t, errors.IsAlreadyExists(err))
	mine, err := s.MembershipsOf(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, mine)

	// A rejected owner leaves no organization behind.
	err = s.CreateTeam(ctx, &status.Organization{Name: "Orphan", Slug: "orphan"}, &status.Member{Role: status.RoleOwner})
	assert.True(t, errors.IsValidationError(err))
	_, err = s.Organization(ctx, "orphan")
	assert.True(t, errors.IsNotFound(err))
}

func testTransferOwnership(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := mustOrg(t, s, "demo")
	acme := mustOrg(t, s, "acme")

	owner := &status.Member{OrganizationID: org.ID, UserID: "u1", Role: status.RoleOwner}
	require.NoError(t, s.AddMember(ctx, owner))
	heir := &status.Member{OrganizationID: org.ID, UserID: "u2", Role: status.RoleMember}
	require.NoError(t, s.AddMember(ctx, heir))
	stranger := &status.Member{OrganizationID: acme.ID, UserID: "u3"}
	require.NoError(t, s.AddMember(ctx, stranger))

	// Failures leave both roles untouched.
	_, _, err := s.TransferOwnership(ctx, owner.ID, "missing")
	assert.True(t, errors.IsNotFound(err))
	_, _, err = s.TransferOwnership(ctx, owner.ID, stranger.ID)
	assert.True(t, errors.IsValidationError(err))
	got, err := s.Member(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RoleOwner, got.Role)

	promoted, demoted, err := s.TransferOwnership(ctx, owner.ID, heir.ID)
	require.NoError(t, err)
	assert.Equal(t, heir.ID, promoted.ID)
	assert.Equal(t, status.RoleOwner, promoted.Role)
	require.NotNil(t, demoted)
	assert.Equal(t, owner.ID, demoted.ID)
	assert.Equal(t, status.RoleAdmin, demoted.Role)

	promoted, demoted, err = s.TransferOwnership(ctx, heir.ID, heir.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RoleOwner, promoted.Role)
	assert.Nil(t, demoted)
}

// Package memory is a mutex-guarded in-process store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// Store keeps every record in maps. Reads return copies.
type Store struct {
	mu           sync.RWMutex
	orgs         map[string]*status.Organization
	services     map[string]*status.Service
	incidents    map[string]*status.Incident
	maintenances map[string]*status.Maintenance
	members      map[string]*status.Member
	clock        *store.Clock
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{
		orgs:         make(map[string]*status.Organization),
		services:     make(map[string]*status.Service),
		incidents:    make(map[string]*status.Incident),
		maintenances: make(map[string]*status.Maintenance),
		members:      make(map[string]*status.Member),
		clock:        store.NewClock(),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Organizations

// Organization implements store.OrganizationStore.
func (s *Store) Organization(_ context.Context, slug string) (*status.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orgs {
		if o.Slug == slug {
			c := *o
			return &c, nil
		}
	}
	return nil, errors.NewNotFoundError("organization", slug)
}

// OrganizationByID implements store.OrganizationStore.
func (s *Store) OrganizationByID(_ context.Context, id string) (*status.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[id]
	if !ok {
		return nil, errors.NewNotFoundError("organization", id)
	}
	c := *o
	return &c, nil
}

// Organizations implements store.OrganizationStore.
func (s *Store) Organizations(context.Context) ([]status.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]status.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		out = append(out, *o)
	}
	slices.SortFunc(out, func(a, b status.Organization) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// CreateOrganization implements store.OrganizationStore.
func (s *Store) CreateOrganization(_ context.Context, org *status.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSlug(org.Slug); err != nil {
		return err
	}
	s.insertOrg(org)
	return nil
}

// CreateTeam implements store.OrganizationStore.
func (s *Store) CreateTeam(_ context.Context, org *status.Organization, owner *status.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner.UserID == "" {
		return errors.NewValidationError("userId", owner.UserID, "owner is required")
	}
	if err := s.checkSlug(org.Slug); err != nil {
		return err
	}
	s.insertOrg(org)
	owner.OrganizationID = org.ID
	s.insertMember(owner)
	return nil
}

func (s *Store) checkSlug(slug string) error {
	for _, o := range s.orgs {
		if o.Slug == slug {
			return errors.NewAlreadyExistsError("organization", slug)
		}
	}
	return nil
}

func (s *Store) insertOrg(org *status.Organization) {
	org.ID = newID(org.ID)
	org.CreatedAt = s.clock.Stamp()
	org.UpdatedAt = org.CreatedAt
	c := *org
	s.orgs[org.ID] = &c
}

// UpdateOrganization implements store.OrganizationStore.
func (s *Store) UpdateOrganization(_ context.Context, org *status.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orgs[org.ID]
	if !ok {
		return errors.NewNotFoundError("organization", org.ID)
	}
	org.Slug = cur.Slug
	org.CreatedAt = cur.CreatedAt
	org.UpdatedAt = s.clock.Stamp()
	c := *org
	s.orgs[org.ID] = &c
	return nil
}

// DeleteOrganization implements store.OrganizationStore.
func (s *Store) DeleteOrganization(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[id]; !ok {
		return errors.NewNotFoundError("organization", id)
	}
	for k, v := range s.services {
		if v.OrganizationID == id {
			delete(s.services, k)
		}
	}
	for k, v := range s.incidents {
		if v.OrganizationID == id {
			delete(s.incidents, k)
		}
	}
	for k, v := range s.maintenances {
		if v.OrganizationID == id {
			delete(s.maintenances, k)
		}
	}
	for k, v := range s.members {
		if v.OrganizationID == id {
			delete(s.members, k)
		}
	}
	delete(s.orgs, id)
	return nil
}

// Services

// Services implements store.ServiceStore.
func (s *Store) Services(_ context.Context, orgID string) ([]status.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]status.Service, 0)
	for _, v := range s.services {
		if orgID == "" || v.OrganizationID == orgID {
			out = append(out, *v)
		}
	}
	slices.SortFunc(out, func(a, b status.Service) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Service implements store.ServiceStore.
func (s *Store) Service(_ context.Context, id string) (*status.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.services[id]
	if !ok {
		return nil, errors.NewNotFoundError("service", id)
	}
	c := *v
	return &c, nil
}

// CreateService implements store.ServiceStore.
func (s *Store) CreateService(_ context.Context, svc *status.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[svc.OrganizationID]; !ok {
		return errors.NewNotFoundError("organization", svc.OrganizationID)
	}
	svc.ID = newID(svc.ID)
	if svc.Status == "" {
		svc.Status = status.ServiceOperational
	}
	svc.CreatedAt = s.clock.Stamp()
	svc.UpdatedAt = svc.CreatedAt
	c := *svc
	s.services[svc.ID] = &c
	return nil
}

// UpdateService implements store.ServiceStore.
func (s *Store) UpdateService(_ context.Context, svc *status.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.services[svc.ID]
	if !ok {
		return errors.NewNotFoundError("service", svc.ID)
	}
	svc.OrganizationID = cur.OrganizationID
	svc.CreatedAt = cur.CreatedAt
	svc.UpdatedAt = s.clock.Stamp()
	c := *svc
	s.services[svc.ID] = &c
	return nil
}

// DeleteService implements store.ServiceStore.
func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return errors.NewNotFoundError("service", id)
	}
	delete(s.services, id)
	for _, inc := range s.incidents {
		inc.ServiceIDs = slices.DeleteFunc(inc.ServiceIDs, func(v string) bool { return v == id })
	}
	for _, m := range s.maintenances {
		m.ServiceIDs = slices.DeleteFunc(m.ServiceIDs, func(v string) bool { return v == id })
	}
	return nil
}

// Incidents

func copyIncident(inc *status.Incident) status.Incident {
	c := *inc
	c.ServiceIDs = slices.Clone(inc.ServiceIDs)
	c.Updates = slices.Clone(inc.Updates)
	if inc.ResolvedAt != nil {
		t := *inc.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// Incidents implements store.IncidentStore.
func (s *Store) Incidents(_ context.Context, orgID string) ([]status.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]status.Incident, 0)
	for _, v := range s.incidents {
		if orgID == "" || v.OrganizationID == orgID {
			out = append(out, copyIncident(v))
		}
	}
	slices.SortFunc(out, func(a, b status.Incident) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Incident implements store.IncidentStore.
func (s *Store) Incident(_ context.Context, id string) (*status.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.incidents[id]
	if !ok {
		return nil, errors.NewNotFoundError("incident", id)
	}
	c := copyIncident(v)
	return &c, nil
}

// CreateIncident implements store.IncidentStore.
func (s *Store) CreateIncident(_ context.Context, inc *status.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[inc.OrganizationID]; !ok {
		return errors.NewNotFoundError("organization", inc.OrganizationID)
	}
	inc.ID = newID(inc.ID)
	if inc.Status == "" {
		inc.Status = status.IncidentInvestigating
	}
	if inc.Severity == "" {
		inc.Severity = status.SeverityMinor
	}
	if inc.ServiceIDs == nil {
		inc.ServiceIDs = []string{}
	}
	inc.Updates = []status.IncidentUpdate{}
	inc.CreatedAt = s.clock.Stamp()
	inc.UpdatedAt = inc.CreatedAt
	if inc.Status == status.IncidentResolved {
		t := inc.CreatedAt
		inc.ResolvedAt = &t
	}
	c := copyIncident(inc)
	s.incidents[inc.ID] = &c
	return nil
}

// AddIncidentUpdate implements store.IncidentStore.
func (s *Store) AddIncidentUpdate(_ context.Context, upd *status.IncidentUpdate) (*status.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[upd.IncidentID]
	if !ok {
		return nil, errors.NewNotFoundError("incident", upd.IncidentID)
	}
	now := s.clock.Stamp()
	upd.ID = newID(upd.ID)
	upd.CreatedAt = now
	// Newest first.
	inc.Updates = append([]status.IncidentUpdate{*upd}, inc.Updates...)
	inc.Status = upd.Status
	inc.UpdatedAt = now
	if upd.Status == status.IncidentResolved {
		t := now
		inc.ResolvedAt = &t
	}
	c := copyIncident(inc)
	return &c, nil
}

// SetIncidentStatus implements store.IncidentStore.
func (s *Store) SetIncidentStatus(_ context.Context, id string, st status.IncidentStatus) (*status.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, errors.NewNotFoundError("incident", id)
	}
	now := s.clock.Stamp()
	inc.Status = st
	inc.UpdatedAt = now
	if st == status.IncidentResolved {
		t := now
		inc.ResolvedAt = &t
	}
	c := copyIncident(inc)
	return &c, nil
}

// DeleteIncident implements store.IncidentStore.
func (s *Store) DeleteIncident(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[id]; !ok {
		return errors.NewNotFoundError("incident", id)
	}
	delete(s.incidents, id)
	return nil
}

// Maintenance

func copyMaintenance(m *status.Maintenance) status.Maintenance {
	c := *m
	c.ServiceIDs = slices.Clone(m.ServiceIDs)
	return c
}

// Maintenances implements store.MaintenanceStore.
func (s *Store) Maintenances(_ context.Context, orgID string) ([]status.Maintenance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]status.Maintenance, 0)
	for _, v := range s.maintenances {
		if orgID == "" || v.OrganizationID == orgID {
			out = append(out, copyMaintenance(v))
		}
	}
	slices.SortFunc(out, func(a, b status.Maintenance) int { return b.ScheduledStart.Compare(a.ScheduledStart) })
	return out, nil
}

// Maintenance implements store.MaintenanceStore.
func (s *Store) Maintenance(_ context.Context, id string) (*status.Maintenance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.maintenances[id]
	if !ok {
		return nil, errors.NewNotFoundError("maintenance", id)
	}
	c := copyMaintenance(v)
	return &c, nil
}

// CreateMaintenance implements store.MaintenanceStore.
func (s *Store) CreateMaintenance(_ context.Context, m *status.Maintenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[m.OrganizationID]; !ok {
		return errors.NewNotFoundError("organization", m.OrganizationID)
	}
	m.ID = newID(m.ID)
	if m.Status == "" {
		m.Status = status.MaintenanceScheduled
	}
	if m.ServiceIDs == nil {
		m.ServiceIDs = []string{}
	}
	m.CreatedAt = s.clock.Stamp()
	m.UpdatedAt = m.CreatedAt
	c := copyMaintenance(m)
	s.maintenances[m.ID] = &c
	return nil
}

// UpdateMaintenance implements store.MaintenanceStore.
func (s *Store) UpdateMaintenance(_ context.Context, m *status.Maintenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.maintenances[m.ID]
	if !ok {
		return errors.NewNotFoundError("maintenance", m.ID)
	}
	m.OrganizationID = cur.OrganizationID
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = s.clock.Stamp()
	if m.ServiceIDs == nil {
		m.ServiceIDs = []string{}
	}
	c := copyMaintenance(m)
	s.maintenances[m.ID] = &c
	return nil
}

// DeleteMaintenance implements store.MaintenanceStore.
func (s *Store) DeleteMaintenance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.maintenances[id]; !ok {
		return errors.NewNotFoundError("maintenance", id)
	}
	delete(s.maintenances, id)
	return nil
}

// Members

// Members implements store.MemberStore.
func (s *Store) Members(_ context.Context, orgID string) ([]status.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterMembers(func(m *status.Member) bool { return m.OrganizationID == orgID }), nil
}

// MembershipsOf implements store.MemberStore.
func (s *Store) MembershipsOf(_ context.Context, userID string) ([]status.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterMembers(func(m *status.Member) bool { return m.UserID == userID }), nil
}

func (s *Store) filterMembers(keep func(*status.Member) bool) []status.Member {
	out := make([]status.Member, 0)
	for _, m := range s.members {
		if keep(m) {
			out = append(out, *m)
		}
	}
	slices.SortFunc(out, func(a, b status.Member) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Member implements store.MemberStore.
func (s *Store) Member(_ context.Context, id string) (*status.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, errors.NewNotFoundError("member", id)
	}
	c := *m
	return &c, nil
}

// MemberByUser implements store.MemberStore.
func (s *Store) MemberByUser(_ context.Context, orgID, userID string) (*status.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			c := *m
			return &c, nil
		}
	}
	return nil, errors.NewNotFoundError("member", userID)
}

// AddMember implements store.MemberStore.
func (s *Store) AddMember(_ context.Context, m *status.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[m.OrganizationID]; !ok {
		return errors.NewNotFoundError("organization", m.OrganizationID)
	}
	for _, cur := range s.members {
		if cur.OrganizationID == m.OrganizationID && cur.UserID == m.UserID {
			return errors.NewAlreadyExistsError("member", m.UserID)
		}
	}
	s.insertMember(m)
	return nil
}

func (s *Store) insertMember(m *status.Member) {
	m.ID = newID(m.ID)
	if m.Role == "" {
		m.Role = status.RoleMember
	}
	m.CreatedAt = s.clock.Stamp()
	m.UpdatedAt = m.CreatedAt
	c := *m
	s.members[m.ID] = &c
}

// UpdateMemberRole implements store.MemberStore.
func (s *Store) UpdateMemberRole(_ context.Context, id string, role status.Role) (*status.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, errors.NewNotFoundError("member", id)
	}
	m.Role = role
	m.UpdatedAt = s.clock.Stamp()
	c := *m
	return &c, nil
}

// TransferOwnership implements store.MemberStore.
func (s *Store) TransferOwnership(_ context.Context, fromID, toID string) (*status.Member, *status.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, ok := s.members[fromID]
	if !ok {
		return nil, nil, errors.NewNotFoundError("member", fromID)
	}
	to, ok := s.members[toID]
	if !ok {
		return nil, nil, errors.NewNotFoundError("member", toID)
	}
	if from.OrganizationID != to.OrganizationID {
		return nil, nil, errors.NewValidationError("memberId", toID, "members belong to different teams")
	}
	now := s.clock.Stamp()
	to.Role = status.RoleOwner
	to.UpdatedAt = now
	promoted := *to
	if fromID == toID {
		return &promoted, nil, nil
	}
	from.Role = status.RoleAdmin
	from.UpdatedAt = now
	demoted := *from
	return &promoted, &demoted, nil
}

// RemoveMember implements store.MemberStore.
func (s *Store) RemoveMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return errors.NewNotFoundError("member", id)
	}
	delete(s.members, id)
	return nil
}

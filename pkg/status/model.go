package status

import "time"

// DefaultOrganizationSlug is the organization staff writes land in when the
// request names none.
const DefaultOrganizationSlug = "demo"

// Organization is a tenant with its own public status page and room.
type Organization struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Slug        string    `json:"slug" yaml:"slug"`
	Description string    `json:"description,omitempty" yaml:"description"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// Service is a monitored component of an organization.
type Service struct {
	ID             string        `json:"id" yaml:"id"`
	OrganizationID string        `json:"organizationId" yaml:"-"`
	Name           string        `json:"name" yaml:"name"`
	Description    string        `json:"description,omitempty" yaml:"description"`
	Status         ServiceStatus `json:"status" yaml:"status"`
	CreatedAt      time.Time     `json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time     `json:"updatedAt" yaml:"-"`
}

// Incident is an unplanned disruption affecting zero or more services.
type Incident struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organizationId"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Status         IncidentStatus   `json:"status"`
	Severity       Severity         `json:"severity"`
	ServiceIDs     []string         `json:"serviceIds"`
	Updates        []IncidentUpdate `json:"updates"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	ResolvedAt     *time.Time       `json:"resolvedAt,omitempty"`
}

// IncidentUpdate is one timeline entry of an incident. Posting an update
// moves the incident to the update's status.
type IncidentUpdate struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"incidentId"`
	Message    string         `json:"message"`
	Status     IncidentStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Maintenance is a planned window affecting zero or more services.
type Maintenance struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Status         MaintenanceStatus `json:"status"`
	ScheduledStart time.Time         `json:"scheduledStart"`
	ScheduledEnd   time.Time         `json:"scheduledEnd"`
	ServiceIDs     []string          `json:"serviceIds"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Member links a user to an organization with a role.
type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"joinedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Team is the dashboard view of an organization and its members.
type Team struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	Members     []Member `json:"members"`
}

// TeamOf builds the team view of an organization.
func TeamOf(org Organization, members []Member) Team {
	if members == nil {
		members = []Member{}
	}
	return Team{
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		Members:     members,
	}
}

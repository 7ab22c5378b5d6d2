package gormstore

import (
	"time"

	"github.com/agentstation/statuspage/pkg/status"
)

type organizationModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:36"`
	Name        string    `gorm:"column:name;size:255;not null"`
	Slug        string    `gorm:"column:slug;size:191;uniqueIndex;not null"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (organizationModel) TableName() string { return "organizations" }

func (m organizationModel) toDomain() status.Organization {
	return status.Organization{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func organizationFrom(o *status.Organization) organizationModel {
	return organizationModel{
		ID:          o.ID,
		Name:        o.Name,
		Slug:        o.Slug,
		Description: o.Description,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

type serviceModel struct {
	ID             string    `gorm:"column:id;primaryKey;size:36"`
	OrganizationID string    `gorm:"column:organization_id;size:36;index;not null"`
	Name           string    `gorm:"column:name;size:255;not null"`
	Description    string    `gorm:"column:description;type:text"`
	Status         string    `gorm:"column:status;size:32;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (serviceModel) TableName() string { return "services" }

func (m serviceModel) toDomain() status.Service {
	return status.Service{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Description:    m.Description,
		Status:         status.ServiceStatus(m.Status),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func serviceFrom(s *status.Service) serviceModel {
	return serviceModel{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		Name:           s.Name,
		Description:    s.Description,
		Status:         string(s.Status),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

type incidentModel struct {
	ID             string     `gorm:"column:id;primaryKey;size:36"`
	OrganizationID string     `gorm:"column:organization_id;size:36;index;not null"`
	Title          string     `gorm:"column:title;size:255;not null"`
	Description    string     `gorm:"column:description;type:text"`
	Status         string     `gorm:"column:status;size:32;not null"`
	Severity       string     `gorm:"column:severity;size:32;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
}

func (incidentModel) TableName() string { return "incidents" }

type incidentServiceModel struct {
	IncidentID string `gorm:"column:incident_id;primaryKey;size:36"`
	ServiceID  string `gorm:"column:service_id;primaryKey;size:36"`
}

func (incidentServiceModel) TableName() string { return "incident_services" }

type incidentUpdateModel struct {
	ID         string    `gorm:"column:id;primaryKey;size:36"`
	IncidentID string    `gorm:"column:incident_id;size:36;index;not null"`
	Message    string    `gorm:"column:message;type:text"`
	Status     string    `gorm:"column:status;size:32;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime:false"`
}

func (incidentUpdateModel) TableName() string { return "incident_updates" }

func (m incidentModel) toDomain(serviceIDs []string, updates []incidentUpdateModel) status.Incident {
	inc := status.Incident{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Title:          m.Title,
		Description:    m.Description,
		Status:         status.IncidentStatus(m.Status),
		Severity:       status.Severity(m.Severity),
		ServiceIDs:     serviceIDs,
		Updates:        make([]status.IncidentUpdate, 0, len(updates)),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if inc.ServiceIDs == nil {
		inc.ServiceIDs = []string{}
	}
	if m.ResolvedAt != nil {
		t := m.ResolvedAt.UTC()
		inc.ResolvedAt = &t
	}
	for _, u := range updates {
		inc.Updates = append(inc.Updates, status.IncidentUpdate{
			ID:         u.ID,
			IncidentID: u.IncidentID,
			Message:    u.Message,
			Status:     status.IncidentStatus(u.Status),
			CreatedAt:  u.CreatedAt.UTC(),
		})
	}
	return inc
}

type maintenanceModel struct {
	ID             string    `gorm:"column:id;primaryKey;size:36"`
	OrganizationID string    `gorm:"column:organization_id;size:36;index;not null"`
	Title          string    `gorm:"column:title;size:255;not null"`
	Description    string    `gorm:"column:description;type:text"`
	Status         string    `gorm:"column:status;size:32;not null"`
	ScheduledStart time.Time `gorm:"column:scheduled_start"`
	ScheduledEnd   time.Time `gorm:"column:scheduled_end"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (maintenanceModel) TableName() string { return "maintenances" }

type maintenanceServiceModel struct {
	MaintenanceID string `gorm:"column:maintenance_id;primaryKey;size:36"`
	ServiceID     string `gorm:"column:service_id;primaryKey;size:36"`
}

func (maintenanceServiceModel) TableName() string { return "maintenance_services" }

func (m maintenanceModel) toDomain(serviceIDs []string) status.Maintenance {
	if serviceIDs == nil {
		serviceIDs = []string{}
	}
	return status.Maintenance{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Title:          m.Title,
		Description:    m.Description,
		Status:         status.MaintenanceStatus(m.Status),
		ScheduledStart: m.ScheduledStart.UTC(),
		ScheduledEnd:   m.ScheduledEnd.UTC(),
		ServiceIDs:     serviceIDs,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func maintenanceFrom(m *status.Maintenance) maintenanceModel {
	return maintenanceModel{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Title:          m.Title,
		Description:    m.Description,
		Status:         string(m.Status),
		ScheduledStart: m.ScheduledStart.UTC(),
		ScheduledEnd:   m.ScheduledEnd.UTC(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type memberModel struct {
	ID             string    `gorm:"column:id;primaryKey;size:36"`
	OrganizationID string    `gorm:"column:organization_id;size:36;not null;uniqueIndex:idx_member_org_user"`
	UserID         string    `gorm:"column:user_id;size:191;not null;uniqueIndex:idx_member_org_user;index"`
	Name           string    `gorm:"column:name;size:255"`
	Email          string    `gorm:"column:email;size:255"`
	Role           string    `gorm:"column:role;size:16;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (memberModel) TableName() string { return "organization_members" }

func (m memberModel) toDomain() status.Member {
	return status.Member{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Name:           m.Name,
		Email:          m.Email,
		Role:           status.Role(m.Role),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func memberFrom(m *status.Member) memberModel {
	return memberModel{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Name:           m.Name,
		Email:          m.Email,
		Role:           string(m.Role),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

var allModels = []any{
	&organizationModel{},
	&serviceModel{},
	&incidentModel{},
	&incidentServiceModel{},
	&incidentUpdateModel{},
	&maintenanceModel{},
	&maintenanceServiceModel{},
	&memberModel{},
}

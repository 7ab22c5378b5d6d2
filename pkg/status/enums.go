package status

import (
	"strings"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/statuspage/pkg/errors"
)

// ServiceStatus is the health of a single service.
type ServiceStatus string

// Service statuses.
const (
	ServiceOperational         ServiceStatus = "OPERATIONAL"
	ServiceDegradedPerformance ServiceStatus = "DEGRADED_PERFORMANCE"
	ServicePartialOutage       ServiceStatus = "PARTIAL_OUTAGE"
	ServiceMajorOutage         ServiceStatus = "MAJOR_OUTAGE"
	ServiceUnderMaintenance    ServiceStatus = "UNDER_MAINTENANCE"
)

// ServiceStatuses lists every valid ServiceStatus.
var ServiceStatuses = []ServiceStatus{
	ServiceOperational, ServiceDegradedPerformance, ServicePartialOutage,
	ServiceMajorOutage, ServiceUnderMaintenance,
}

// IncidentStatus is the lifecycle stage of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentInvestigating IncidentStatus = "INVESTIGATING"
	IncidentIdentified    IncidentStatus = "IDENTIFIED"
	IncidentMonitoring    IncidentStatus = "MONITORING"
	IncidentResolved      IncidentStatus = "RESOLVED"
)

// IncidentStatuses lists every valid IncidentStatus.
var IncidentStatuses = []IncidentStatus{
	IncidentInvestigating, IncidentIdentified, IncidentMonitoring, IncidentResolved,
}

// Active reports whether the incident is still shown on the public page.
func (s IncidentStatus) Active() bool {
	return s != IncidentResolved
}

// Severity grades an incident.
type Severity string

// Incident severities.
const (
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every valid Severity.
var Severities = []Severity{SeverityMinor, SeverityMajor, SeverityCritical}

// MaintenanceStatus is the lifecycle stage of a maintenance window.
type MaintenanceStatus string

// Maintenance statuses.
const (
	MaintenanceScheduled  MaintenanceStatus = "SCHEDULED"
	MaintenanceInProgress MaintenanceStatus = "IN_PROGRESS"
	MaintenanceCompleted  MaintenanceStatus = "COMPLETED"
	MaintenanceCancelled  MaintenanceStatus = "CANCELLED"
)

// MaintenanceStatuses lists every valid MaintenanceStatus.
var MaintenanceStatuses = []MaintenanceStatus{
	MaintenanceScheduled, MaintenanceInProgress, MaintenanceCompleted, MaintenanceCancelled,
}

// Upcoming reports whether the window is scheduled or running.
func (s MaintenanceStatus) Upcoming() bool {
	return s == MaintenanceScheduled || s == MaintenanceInProgress
}

// Role is a member's role within an organization.
type Role string

// Member roles.
const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Roles lists every valid Role.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember}

// CanManage reports whether the role may change roles or delete the team.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// ParseServiceStatus accepts any casing or separator ("degraded performance",
// "partial-outage") and returns def when s is empty.
func ParseServiceStatus(s string, def ServiceStatus) (ServiceStatus, error) {
	return parseEnum("status", s, def, ServiceStatuses)
}

// ParseIncidentStatus parses an incident status, returning def when s is empty.
func ParseIncidentStatus(s string, def IncidentStatus) (IncidentStatus, error) {
	return parseEnum("status", s, def, IncidentStatuses)
}

// ParseSeverity parses an incident severity, returning def when s is empty.
func ParseSeverity(s string, def Severity) (Severity, error) {
	return parseEnum("severity", s, def, Severities)
}

// ParseMaintenanceStatus parses a maintenance status, returning def when s is empty.
func ParseMaintenanceStatus(s string, def MaintenanceStatus) (MaintenanceStatus, error) {
	return parseEnum("status", s, def, MaintenanceStatuses)
}

// ParseRole parses a member role, returning def when s is empty.
func ParseRole(s string, def Role) (Role, error) {
	return parseEnum("role", s, def, Roles)
}

func parseEnum[T ~string](field, s string, def T, valid []T) (T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	normalized := T(strcase.ToScreamingSnake(s))
	for _, v := range valid {
		if v == normalized {
			return v, nil
		}
	}
	return def, errors.NewValidationError(field, s, "unknown value")
}

var titleCaser = cases.Title(language.English)

// Label renders a status the way the public page shows it: "partial outage".
func Label[T ~string](s T) string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// DisplayName renders a status for headings: "Partial Outage".
func DisplayName[T ~string](s T) string {
	return titleCaser.String(Label(s))
}

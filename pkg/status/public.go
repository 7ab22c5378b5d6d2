package status

import (
	"math"
	"time"
)

// Health is the overall state of an organization derived from its services.
type Health string

// Overall health values.
const (
	HealthOperational   Health = "operational"
	HealthDegraded      Health = "degraded"
	HealthPartialOutage Health = "partial_outage"
	HealthMajorOutage   Health = "major_outage"
)

// ServiceCounts tallies services per status.
type ServiceCounts struct {
	Total         int `json:"total"`
	Operational   int `json:"operational"`
	Degraded      int `json:"degraded"`
	PartialOutage int `json:"partial_outage"`
	MajorOutage   int `json:"major_outage"`
	Maintenance   int `json:"maintenance"`
}

// Summary is the headline of a public status page.
type Summary struct {
	Overall  Health        `json:"overall"`
	Uptime   float64       `json:"uptime"`
	Services ServiceCounts `json:"services"`
}

// Overall computes the health summary. An organization with no services is
// fully operational.
func Overall(services []Service) Summary {
	var counts ServiceCounts
	counts.Total = len(services)
	for _, s := range services {
		switch s.Status {
		case ServiceOperational:
			counts.Operational++
		case ServiceDegradedPerformance:
			counts.Degraded++
		case ServicePartialOutage:
			counts.PartialOutage++
		case ServiceMajorOutage:
			counts.MajorOutage++
		case ServiceUnderMaintenance:
			counts.Maintenance++
		}
	}

	pct := 100.0
	if counts.Total > 0 {
		pct = float64(counts.Operational) / float64(counts.Total) * 100
	}

	health := HealthOperational
	switch {
	case pct < 50:
		health = HealthMajorOutage
	case pct < 75:
		health = HealthPartialOutage
	case pct < 95:
		health = HealthDegraded
	}

	return Summary{
		Overall:  health,
		Uptime:   math.Round(pct*100) / 100,
		Services: counts,
	}
}

// PublicOrganization is the organization header of a public status page.
type PublicOrganization struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// ServiceRef names a service affected by an incident or maintenance window.
type ServiceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PublicIncident is an active incident as shown publicly.
type PublicIncident struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Status           string       `json:"status"`
	Severity         string       `json:"severity"`
	CreatedAt        time.Time    `json:"created_at"`
	AffectedServices []ServiceRef `json:"affected_services,omitempty"`
}

// PublicMaintenance is an upcoming or running window as shown publicly.
type PublicMaintenance struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Status           string       `json:"status"`
	ScheduledStart   time.Time    `json:"scheduled_start"`
	ScheduledEnd     time.Time    `json:"scheduled_end"`
	AffectedServices []ServiceRef `json:"affected_services,omitempty"`
}

// PublicService is a service row with whatever currently affects it.
type PublicService struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Status      string             `json:"status"`
	Incidents   []PublicIncident   `json:"incidents"`
	Maintenance *PublicMaintenance `json:"maintenance"`
}

// PublicStatus is the read model behind GET /api/public/status.
type PublicStatus struct {
	Organization PublicOrganization  `json:"organization"`
	Status       Summary             `json:"status"`
	Services     []PublicService     `json:"services"`
	Incidents    []PublicIncident    `json:"incidents"`
	Maintenance  []PublicMaintenance `json:"maintenance"`
	Timestamp    time.Time           `json:"timestamp"`
}

// BuildPublicStatus assembles the public snapshot. Resolved incidents and
// finished maintenance windows are left out.
func BuildPublicStatus(org Organization, services []Service, incidents []Incident, maintenance []Maintenance, now time.Time) PublicStatus {
	names := make(map[string]string, len(services))
	for _, s := range services {
		names[s.ID] = s.Name
	}
	refs := func(ids []string) []ServiceRef {
		var out []ServiceRef
		for _, id := range ids {
			if name, ok := names[id]; ok {
				out = append(out, ServiceRef{ID: id, Name: name})
			}
		}
		return out
	}

	ps := PublicStatus{
		Organization: PublicOrganization{Name: org.Name, Slug: org.Slug, Description: org.Description},
		Status:       Overall(services),
		Services:     make([]PublicService, 0, len(services)),
		Incidents:    []PublicIncident{},
		Maintenance:  []PublicMaintenance{},
		Timestamp:    now.UTC(),
	}

	for _, inc := range incidents {
		if !inc.Status.Active() {
			continue
		}
		ps.Incidents = append(ps.Incidents, PublicIncident{
			ID:               inc.ID,
			Title:            inc.Title,
			Status:           Label(inc.Status),
			Severity:         Label(inc.Severity),
			CreatedAt:        inc.CreatedAt,
			AffectedServices: refs(inc.ServiceIDs),
		})
	}
	for _, m := range maintenance {
		if !m.Status.Upcoming() {
			continue
		}
		ps.Maintenance = append(ps.Maintenance, PublicMaintenance{
			ID:               m.ID,
			Title:            m.Title,
			Status:           Label(m.Status),
			ScheduledStart:   m.ScheduledStart,
			ScheduledEnd:     m.ScheduledEnd,
			AffectedServices: refs(m.ServiceIDs),
		})
	}

	for _, s := range services {
		row := PublicService{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Status:      Label(s.Status),
			Incidents:   []PublicIncident{},
		}
		for _, inc := range ps.Incidents {
			if affects(inc.AffectedServices, s.ID) {
				row.Incidents = append(row.Incidents, inc)
			}
		}
		for i := range ps.Maintenance {
			if affects(ps.Maintenance[i].AffectedServices, s.ID) {
				m := ps.Maintenance[i]
				row.Maintenance = &m
				break
			}
		}
		ps.Services = append(ps.Services, row)
	}

	return ps
}

func affects(refs []ServiceRef, id string) bool {
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}

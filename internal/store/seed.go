package store

import (
	"context"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// Seed is a fixture file of organizations to load into a store.
//
//	organizations:
//	  - name: Demo Company
//	    slug: demo
//	    services:
//	      - name: API
//	        status: degraded performance
//	    members:
//	      - user_id: user_ada
//	        name: Ada
//	        email: ada@example.com
//	        role: owner
type Seed struct {
	Organizations []SeedOrganization `yaml:"organizations"`
}

// SeedOrganization is one organization in a seed file.
type SeedOrganization struct {
	Name        string        `yaml:"name"`
	Slug        string        `yaml:"slug"`
	Description string        `yaml:"description"`
	Services    []SeedService `yaml:"services"`
	Members     []SeedMember  `yaml:"members"`
}

// SeedService is one service in a seed file.
type SeedService struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

// SeedMember is one member in a seed file.
type SeedMember struct {
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Role   string `yaml:"role"`
}

// SeedResult counts what Apply created.
type SeedResult struct {
	Organizations int
	Services      int
	Members       int
	Skipped       int
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapResource("read", "seed file", path, err)
	}
	return ParseSeed(data, path)
}

// ParseSeed decodes and validates seed YAML. name is used in errors.
func ParseSeed(data []byte, name string) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.WrapParse("yaml", name, err)
	}
	for i, org := range seed.Organizations {
		if org.Slug == "" || org.Name == "" {
			return nil, errors.NewValidationError("organizations", i, "name and slug are required")
		}
		for _, svc := range org.Services {
			if svc.Name == "" {
				return nil, errors.NewValidationError("services", org.Slug, "service name is required")
			}
			if _, err := status.ParseServiceStatus(svc.Status, status.ServiceOperational); err != nil {
				return nil, err
			}
		}
		for _, m := range org.Members {
			if m.UserID == "" {
				return nil, errors.NewValidationError("members", org.Slug, "user_id is required")
			}
			if _, err := status.ParseRole(m.Role, status.RoleMember); err != nil {
				return nil, err
			}
		}
	}
	return &seed, nil
}

// Apply loads the seed into s. Organizations that already exist are reused;
// services are added by name only if missing and members only if not yet
// in the organization.
func Apply(ctx context.Context, s Store, seed *Seed) (SeedResult, error) {
	var res SeedResult
	for _, so := range seed.Organizations {
		org, err := s.Organization(ctx, so.Slug)
		if errors.IsNotFound(err) {
			org = &status.Organization{Name: so.Name, Slug: so.Slug, Description: so.Description}
			if err = s.CreateOrganization(ctx, org); err != nil {
				return res, err
			}
			res.Organizations++
		} else if err != nil {
			return res, err
		}

		existing, err := s.Services(ctx, org.ID)
		if err != nil {
			return res, err
		}
		names := make(map[string]bool, len(existing))
		for _, svc := range existing {
			names[svc.Name] = true
		}
		for _, ss := range so.Services {
			if names[ss.Name] {
				res.Skipped++
				continue
			}
			st, _ := status.ParseServiceStatus(ss.Status, status.ServiceOperational)
			svc := &status.Service{OrganizationID: org.ID, Name: ss.Name, Description: ss.Description, Status: st}
			if err := s.CreateService(ctx, svc); err != nil {
				return res, err
			}
			res.Services++
		}

		for _, sm := range so.Members {
			role, _ := status.ParseRole(sm.Role, status.RoleMember)
			err := s.AddMember(ctx, &status.Member{
				OrganizationID: org.ID,
				UserID:         sm.UserID,
				Name:           sm.Name,
				Email:          sm.Email,
				Role:           role,
			})
			switch {
			case errors.IsAlreadyExists(err):
				res.Skipped++
			case err != nil:
				return res, err
			default:
				res.Members++
			}
		}
	}
	return res, nil
}

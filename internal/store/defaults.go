package store

import (
	"context"
	"slices"
	"time"

	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// DefaultOrganization is created on first use.
var DefaultOrganization = status.Organization{
	Name:        "Demo Company",
	Slug:        status.DefaultOrganizationSlug,
	Description: "This is a demo status page showing various service states",
}

// EnsureOrganization returns the organization for slug, creating the default
// organization when it is missing. A non-empty userID is made OWNER if not
// yet a member.
func EnsureOrganization(ctx context.Context, s Store, slug, userID string) (*status.Organization, error) {
	if slug == "" {
		slug = DefaultOrganization.Slug
	}

	org, err := s.Organization(ctx, slug)
	switch {
	case err == nil:
	case errors.IsNotFound(err) && slug == DefaultOrganization.Slug:
		org = &status.Organization{}
		*org = DefaultOrganization
		if err := s.CreateOrganization(ctx, org); err != nil {
			if !errors.IsAlreadyExists(err) {
				return nil, err
			}
			// Lost a creation race; read the winner.
			if org, err = s.Organization(ctx, slug); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	if userID == "" {
		return org, nil
	}
	if _, err := s.MemberByUser(ctx, org.ID, userID); err == nil {
		return org, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}
	err = s.AddMember(ctx, &status.Member{
		OrganizationID: org.ID,
		UserID:         userID,
		Name:           userID,
		Role:           status.RoleOwner,
	})
	if err != nil && !errors.IsAlreadyExists(err) {
		return nil, err
	}
	return org, nil
}

// Teams returns the team view of every organization userID belongs to.
func Teams(ctx context.Context, s Store, userID string) ([]status.Team, error) {
	memberships, err := s.MembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	teams := make([]status.Team, 0, len(memberships))
	for _, m := range memberships {
		org, err := s.OrganizationByID(ctx, m.OrganizationID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		members, err := s.Members(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		teams = append(teams, status.TeamOf(*org, members))
	}
	return teams, nil
}

// PublicStatus builds the public snapshot of an organization.
func PublicStatus(ctx context.Context, s Store, slug string, now time.Time) (*status.PublicStatus, error) {
	org, err := s.Organization(ctx, slug)
	if err != nil {
		return nil, err
	}
	services, err := s.Services(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	incidents, err := s.Incidents(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	maintenance, err := s.Maintenances(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	// Public maintenance is listed soonest first.
	slices.SortStableFunc(maintenance, func(a, b status.Maintenance) int {
		return a.ScheduledStart.Compare(b.ScheduledStart)
	})
	ps := status.BuildPublicStatus(*org, services, incidents, maintenance, now)
	return &ps, nil
}

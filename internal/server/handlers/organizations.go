package handlers

import (
	"net/http"
	"slices"

	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/pkg/status"
)

// Defaults for organizations created without a name or slug.
const (
	defaultOrganizationName        = "Default Organization"
	defaultOrganizationSlug        = "default-org"
	defaultOrganizationDescription = "Default organization for status page"
)

type organizationRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// HandleListOrganizations handles GET /api/organizations.
// @Summary List organizations
// @Description Lists every organization, newest first.
// @Tags organizations
// @Produce json
// @Success 200 {object} response.Response{data=[]status.Organization}
// @Router /api/organizations [get].
func (h *Handlers) HandleListOrganizations(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	orgs, err := h.store.Organizations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slices.Reverse(orgs)
	response.OK(w, orgs)
}

// HandleCreateOrganization handles POST /api/organizations.
// @Summary Create organization
// @Tags organizations
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=status.Organization}
// @Failure 409 {object} response.Response{error=response.Error}
// @Router /api/organizations [post].
func (h *Handlers) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	var req organizationRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	org := &status.Organization{
		Name:        orDefault(req.Name, defaultOrganizationName),
		Slug:        orDefault(req.Slug, defaultOrganizationSlug),
		Description: orDefault(req.Description, defaultOrganizationDescription),
	}
	if err := h.store.CreateOrganization(r.Context(), org); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, org)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

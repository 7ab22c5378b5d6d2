package handlers

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"github.com/rs/xid"

	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// Team events are announced in the default organization's room, where the
// staff dashboard listens.
const teamRoomSlug = status.DefaultOrganizationSlug

// actionTransferOwnership is the only PATCH action on a member.
const actionTransferOwnership = "transfer-ownership"

type teamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type memberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type memberActionRequest struct {
	Action string `json:"action"`
}

// membership returns the acting user's membership of orgID. Non-members
// get a ForbiddenError.
func (h *Handlers) membership(ctx context.Context, orgID, userID, action string) (*status.Member, error) {
	m, err := h.store.MemberByUser(ctx, orgID, userID)
	if errors.IsNotFound(err) {
		return nil, errors.NewForbiddenError(userID, action, "not a member of this team")
	}
	return m, err
}

// manager is membership restricted to OWNER and ADMIN.
func (h *Handlers) manager(ctx context.Context, orgID, userID, action string) (*status.Member, error) {
	m, err := h.membership(ctx, orgID, userID, action)
	if err != nil {
		return nil, err
	}
	if !m.Role.CanManage() {
		return nil, errors.NewForbiddenError(userID, action, "requires OWNER or ADMIN")
	}
	return m, nil
}

// teamMember loads a member and checks it belongs to the team.
func (h *Handlers) teamMember(ctx context.Context, teamID, memberID string) (*status.Member, error) {
	m, err := h.store.Member(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.OrganizationID != teamID {
		return nil, errors.NewNotFoundError("member", memberID)
	}
	return m, nil
}

// teamSlug derives a unique organization slug from a team name.
func teamSlug(name string) string {
	base := strcase.ToKebab(strings.TrimSpace(name))
	if base == "" {
		base = "team"
	}
	return base + "-" + xid.New().String()
}

// userIDFromEmail derives a stable user id for invited members.
func userIDFromEmail(email string) string {
	return "user_" + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, strings.TrimSpace(email))
}

// HandleListTeams handles GET /api/teams: every team the acting user
// belongs to.
// @Summary List teams
// @Tags teams
// @Produce json
// @Success 200 {object} response.Response{data=[]status.Team}
// @Router /api/teams [get].
func (h *Handlers) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	teams, err := store.Teams(r.Context(), h.store, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, teams)
}

// HandleCreateTeam handles POST /api/teams. The acting user becomes OWNER.
func (h *Handlers) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req teamRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"name", req.Name}); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Description == "" {
		req.Description = "Team: " + req.Name
	}

	org := &status.Organization{Name: req.Name, Slug: teamSlug(req.Name), Description: req.Description}
	owner := &status.Member{UserID: userID, Name: userID, Role: status.RoleOwner}
	if err := h.store.CreateTeam(r.Context(), org, owner); err != nil {
		h.fail(w, r, err)
		return
	}
	team := status.TeamOf(*org, []status.Member{*owner})
	h.bridge.TeamCreated(teamRoomSlug, org.ID, team)
	response.Created(w, team)
}

// HandleUpdateTeam handles PUT /api/teams/{teamId}. Any member may rename.
func (h *Handlers) HandleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req teamRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	org, err := h.store.OrganizationByID(r.Context(), r.PathValue("teamId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.membership(r.Context(), org.ID, userID, "update team"); err != nil {
		h.fail(w, r, err)
		return
	}

	if req.Name != "" {
		org.Name = req.Name
	}
	if req.Description != "" {
		org.Description = req.Description
	}
	err = h.store.UpdateOrganization(r.Context(), org)
	team := status.TeamOf(*org, nil)
	bridge.Committed(err, func() {
		h.committed(org.Slug)
		h.bridge.TeamUpdated(teamRoomSlug, org.ID, team)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, team)
}

// HandleDeleteTeam handles DELETE /api/teams/{teamId}, removing the team
// with everything it owns.
func (h *Handlers) HandleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	org, err := h.store.OrganizationByID(r.Context(), r.PathValue("teamId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.manager(r.Context(), org.ID, userID, "delete team"); err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.store.DeleteOrganization(r.Context(), org.ID)
	bridge.Committed(err, func() {
		h.committed(org.Slug)
		h.bridge.TeamDeleted(teamRoomSlug, org.ID)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]string{"message": "Team deleted successfully"})
}

// HandleAddMember handles POST /api/teams/{teamId}/members.
// @Summary Add team member
// @Tags teams
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=status.Member}
// @Failure 403 {object} response.Response{error=response.Error}
// @Failure 409 {object} response.Response{error=response.Error}
// @Router /api/teams/{teamId}/members [post].
func (h *Handlers) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"name", req.Name}, [2]string{"email", req.Email}, [2]string{"role", req.Role}); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := status.ParseRole(req.Role, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	teamID := r.PathValue("teamId")
	if _, err := h.store.OrganizationByID(r.Context(), teamID); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.membership(r.Context(), teamID, userID, "add member"); err != nil {
		h.fail(w, r, err)
		return
	}

	m := &status.Member{
		OrganizationID: teamID,
		UserID:         userIDFromEmail(req.Email),
		Name:           req.Name,
		Email:          req.Email,
		Role:           role,
	}
	err = h.store.AddMember(r.Context(), m)
	bridge.Committed(err, func() {
		h.bridge.TeamMemberAdded(teamRoomSlug, teamID, m.ID, m)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, m)
}

// HandleUpdateMemberRole handles PUT /api/teams/{teamId}/members/{memberId}.
func (h *Handlers) HandleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"role", req.Role}); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := status.ParseRole(req.Role, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	teamID := r.PathValue("teamId")
	target, err := h.teamMember(r.Context(), teamID, r.PathValue("memberId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.manager(r.Context(), teamID, userID, "change member role"); err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.store.UpdateMemberRole(r.Context(), target.ID, role)
	bridge.Committed(err, func() {
		h.bridge.TeamMemberRoleChanged(teamRoomSlug, teamID, updated.ID, string(updated.Role))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, updated)
}

// HandleMemberAction handles PATCH /api/teams/{teamId}/members/{memberId}.
// Transferring ownership promotes the target to OWNER and demotes the
// acting owner to ADMIN.
func (h *Handlers) HandleMemberAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req memberActionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Action != actionTransferOwnership {
		h.fail(w, r, errors.NewValidationError("action", req.Action, "unknown action"))
		return
	}

	teamID := r.PathValue("teamId")
	target, err := h.teamMember(r.Context(), teamID, r.PathValue("memberId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	current, err := h.membership(r.Context(), teamID, userID, actionTransferOwnership)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if current.Role != status.RoleOwner {
		h.fail(w, r, errors.NewForbiddenError(userID, actionTransferOwnership, "only the current owner can transfer ownership"))
		return
	}

	promoted, demoted, err := h.store.TransferOwnership(r.Context(), current.ID, target.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.bridge.TeamMemberRoleChanged(teamRoomSlug, teamID, promoted.ID, string(promoted.Role))
	if demoted != nil {
		h.bridge.TeamMemberRoleChanged(teamRoomSlug, teamID, demoted.ID, string(demoted.Role))
	}
	response.OK(w, promoted)
}

// HandleRemoveMember handles DELETE /api/teams/{teamId}/members/{memberId}.
// The last OWNER cannot be removed.
func (h *Handlers) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	teamID := r.PathValue("teamId")
	target, err := h.teamMember(r.Context(), teamID, r.PathValue("memberId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.manager(r.Context(), teamID, userID, "remove member"); err != nil {
		h.fail(w, r, err)
		return
	}

	if target.Role == status.RoleOwner {
		members, err := h.store.Members(r.Context(), teamID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		owners := 0
		for _, m := range members {
			if m.Role == status.RoleOwner {
				owners++
			}
		}
		if owners <= 1 {
			h.fail(w, r, errors.NewValidationError("memberId", target.ID,
				"cannot remove the last owner; transfer ownership first"))
			return
		}
	}

	err = h.store.RemoveMember(r.Context(), target.ID)
	bridge.Committed(err, func() {
		h.bridge.TeamMemberRemoved(teamRoomSlug, teamID, target.ID)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	msg := "Member removed successfully"
	if target.UserID == userID {
		msg = "You have been removed from the team successfully"
	}
	response.OK(w, map[string]string{"message": msg})
}

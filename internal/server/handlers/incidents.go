package handlers

import (
	"net/http"

	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/pkg/status"
)

type incidentRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Severity    string   `json:"severity"`
	ServiceIDs  []string `json:"serviceIds"`
}

type incidentUpdateRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleListIncidents handles GET /api/incidents.
// @Summary List incidents
// @Description Lists incidents newest first, each with its timeline.
// @Tags incidents
// @Produce json
// @Param org query string false "Organization slug"
// @Success 200 {object} response.Response{data=[]status.Incident}
// @Router /api/incidents [get].
func (h *Handlers) HandleListIncidents(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	orgID, err := h.orgFilter(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	incidents, err := h.store.Incidents(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, incidents)
}

// HandleGetIncident handles GET /api/incidents/{id}.
func (h *Handlers) HandleGetIncident(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	inc, err := h.store.Incident(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, inc)
}

// HandleCreateIncident handles POST /api/incidents.
// @Summary Create incident
// @Tags incidents
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=status.Incident}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/incidents [post].
func (h *Handlers) HandleCreateIncident(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req incidentRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"title", req.Title}); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := status.ParseIncidentStatus(req.Status, status.IncidentInvestigating)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	severity, err := status.ParseSeverity(req.Severity, status.SeverityMinor)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	org, err := h.organization(r.Context(), r, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inc := &status.Incident{
		OrganizationID: org.ID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         st,
		Severity:       severity,
		ServiceIDs:     req.ServiceIDs,
	}
	err = h.store.CreateIncident(r.Context(), inc)
	bridge.Committed(err, func() {
		h.committed(org.Slug)
		h.bridge.IncidentCreated(org.Slug, inc.ID, string(inc.Status), "New incident: "+inc.Title)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, inc)
}

// HandleAddIncidentUpdate handles POST /api/incidents/{id}/updates. The
// incident moves to the update's status.
func (h *Handlers) HandleAddIncidentUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	var req incidentUpdateRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"status", req.Status}); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := status.ParseIncidentStatus(req.Status, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id := r.PathValue("id")
	current, err := h.store.Incident(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), current.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	upd := &status.IncidentUpdate{IncidentID: id, Status: st, Message: req.Message}
	_, err = h.store.AddIncidentUpdate(r.Context(), upd)
	bridge.Committed(err, func() {
		h.committed(slug)
		h.bridge.IncidentUpdated(slug, id, string(st), req.Message)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, upd)
}

type incidentStatusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateIncident handles PUT /api/incidents/{id}. It moves the
// incident to a new status without adding a timeline entry.
// @Summary Change incident status
// @Tags incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Response{data=status.Incident}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/incidents/{id} [put].
func (h *Handlers) HandleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	var req incidentStatusRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"status", req.Status}); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := status.ParseIncidentStatus(req.Status, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	current, err := h.store.Incident(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), current.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	inc, err := h.store.SetIncidentStatus(r.Context(), current.ID, st)
	bridge.Committed(err, func() {
		h.committed(slug)
		h.bridge.IncidentUpdated(slug, inc.ID, string(inc.Status), "Incident status updated to "+string(inc.Status))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, inc)
}

// HandleDeleteIncident handles DELETE /api/incidents/{id}.
func (h *Handlers) HandleDeleteIncident(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	inc, err := h.store.Incident(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), inc.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.store.DeleteIncident(r.Context(), inc.ID)
	bridge.Committed(err, func() {
		h.committed(slug)
		h.bridge.IncidentDeleted(slug, inc.ID, string(inc.Status))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]string{"message": "Incident deleted successfully"})
}

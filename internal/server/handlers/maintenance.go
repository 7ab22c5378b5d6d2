package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// maintenanceRequest is the body of POST and PUT /api/maintenance. A nil
// ServiceIDs on PUT keeps the current services.
type maintenanceRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	ScheduledStart *time.Time `json:"scheduledStart"`
	ScheduledEnd   *time.Time `json:"scheduledEnd"`
	ServiceIDs     []string   `json:"serviceIds"`
}

func validWindow(start, end time.Time) error {
	if end.Before(start) {
		return errors.NewValidationError("scheduledEnd", end, "must not be before scheduledStart")
	}
	return nil
}

// HandleListMaintenance handles GET /api/maintenance.
// @Summary List maintenance windows
// @Tags maintenance
// @Produce json
// @Param org query string false "Organization slug"
// @Success 200 {object} response.Response{data=[]status.Maintenance}
// @Router /api/maintenance [get].
func (h *Handlers) HandleListMaintenance(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	orgID, err := h.orgFilter(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	windows, err := h.store.Maintenances(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, windows)
}

// HandleGetMaintenance handles GET /api/maintenance/{id}.
func (h *Handlers) HandleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	m, err := h.store.Maintenance(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, m)
}

// HandleCreateMaintenance handles POST /api/maintenance. New windows start
// SCHEDULED.
func (h *Handlers) HandleCreateMaintenance(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req maintenanceRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"title", req.Title}); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ScheduledStart == nil || req.ScheduledEnd == nil {
		h.fail(w, r, errors.NewValidationError("scheduledStart", nil, "scheduledStart and scheduledEnd are required"))
		return
	}
	if err := validWindow(*req.ScheduledStart, *req.ScheduledEnd); err != nil {
		h.fail(w, r, err)
		return
	}

	org, err := h.organization(r.Context(), r, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m := &status.Maintenance{
		OrganizationID: org.ID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         status.MaintenanceScheduled,
		ScheduledStart: req.ScheduledStart.UTC(),
		ScheduledEnd:   req.ScheduledEnd.UTC(),
		ServiceIDs:     req.ServiceIDs,
	}
	err = h.store.CreateMaintenance(r.Context(), m)
	bridge.Committed(err, func() {
		h.committed(org.Slug)
		h.bridge.MaintenanceCreated(org.Slug, m.ID, string(m.Status))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, m)
}

// HandleUpdateMaintenance handles PUT /api/maintenance/{id}.
func (h *Handlers) HandleUpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	var req maintenanceRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.store.Maintenance(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := status.ParseMaintenanceStatus(req.Status, m.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), m.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.Title != "" {
		m.Title = req.Title
	}
	if req.Description != "" {
		m.Description = req.Description
	}
	if req.ScheduledStart != nil {
		m.ScheduledStart = req.ScheduledStart.UTC()
	}
	if req.ScheduledEnd != nil {
		m.ScheduledEnd = req.ScheduledEnd.UTC()
	}
	if req.ServiceIDs != nil {
		m.ServiceIDs = req.ServiceIDs
	}
	m.Status = st
	if err := validWindow(m.ScheduledStart, m.ScheduledEnd); err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.store.UpdateMaintenance(r.Context(), m)
	bridge.Committed(err, func() {
		h.committed(slug)
		h.bridge.MaintenanceUpdated(slug, m.ID, string(m.Status))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, m)
}

// HandleDeleteMaintenance handles DELETE /api/maintenance/{id}.
func (h *Handlers) HandleDeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	m, err := h.store.Maintenance(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), m.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.store.DeleteMaintenance(r.Context(), m.ID)
	bridge.Committed(err, func() {
		h.committed(slug)
		h.bridge.MaintenanceDeleted(slug, m.ID, string(m.Status))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]string{"message": "Maintenance deleted successfully"})
}

package handlers

import (
	"net/http"

	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/pkg/status"
)

// serviceRequest is the body of POST and PUT /api/services.
type serviceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// HandleListServices handles GET /api/services.
// @Summary List services
// @Tags services
// @Produce json
// @Param org query string false "Organization slug"
// @Success 200 {object} response.Response{data=[]status.Service}
// @Router /api/services [get].
func (h *Handlers) HandleListServices(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	orgID, err := h.orgFilter(r.Context(), r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	services, err := h.store.Services(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, services)
}

// HandleGetService handles GET /api/services/{id}.
func (h *Handlers) HandleGetService(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	svc, err := h.store.Service(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, svc)
}

// HandleCreateService handles POST /api/services.
// @Summary Create service
// @Description Creates a service and announces its status to the organization room.
// @Tags services
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=status.Service}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/services [post].
func (h *Handlers) HandleCreateService(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req serviceRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := required([2]string{"name", req.Name}); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := status.ParseServiceStatus(req.Status, status.ServiceOperational)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	org, err := h.organization(r.Context(), r, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	svc := &status.Service{
		OrganizationID: org.ID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         st,
	}
	err = h.store.CreateService(r.Context(), svc)
	bridge.Committed(err, func() {
		h.committed(org.Slug)
		h.bridge.ServiceStatusChanged(org.Slug, svc.ID, string(svc.Status))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, svc)
}

// HandleUpdateService handles PUT /api/services/{id}. Empty fields keep
// their current value; only a supplied status is announced.
func (h *Handlers) HandleUpdateService(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	var req serviceRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	svc, err := h.store.Service(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := status.ParseServiceStatus(req.Status, svc.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), svc.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.Name != "" {
		svc.Name = req.Name
	}
	if req.Description != "" {
		svc.Description = req.Description
	}
	svc.Status = st

	err = h.store.UpdateService(r.Context(), svc)
	bridge.Committed(err, func() {
		h.committed(slug)
		if req.Status != "" {
			h.bridge.ServiceStatusChanged(slug, svc.ID, string(svc.Status))
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, svc)
}

// HandleDeleteService handles DELETE /api/services/{id}.
func (h *Handlers) HandleDeleteService(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingUser(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	svc, err := h.store.Service(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.slugOf(r.Context(), svc.OrganizationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.DeleteService(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	// Deletion has no event kind; the public page refreshes on its next read.
	h.committed(slug)
	response.OK(w, map[string]string{"message": "Service deleted successfully"})
}

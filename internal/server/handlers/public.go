package handlers

import (
	"net/http"

	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/pkg/status"
)

// HandlePublicStatus handles GET /api/public/status.
// @Summary Public status page
// @Description Overall health, services, active incidents and upcoming maintenance of one organization.
// @Tags public
// @Produce json
// @Param org query string false "Organization slug" default(demo)
// @Success 200 {object} response.Response{data=status.PublicStatus}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/public/status [get].
func (h *Handlers) HandlePublicStatus(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("org")
	if slug == "" {
		slug = status.DefaultOrganizationSlug
	}

	if ps, ok := h.cache.PublicStatus(slug); ok {
		w.Header().Set("X-Cache", "HIT")
		response.OK(w, ps)
		return
	}

	if slug == status.DefaultOrganizationSlug {
		// The demo page exists before anyone has written to it.
		if _, err := store.EnsureOrganization(r.Context(), h.store, slug, ""); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	ps, err := store.PublicStatus(r.Context(), h.store, slug, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cache.SetPublicStatus(slug, ps)
	w.Header().Set("X-Cache", "MISS")
	response.OK(w, ps)
}

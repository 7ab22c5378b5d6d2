// Package handlers provides HTTP request handlers for the statuspage API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/internal/server/cache"
	"github.com/agentstation/statuspage/internal/server/response"
	"github.com/agentstation/statuspage/internal/server/sse"
	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/logging"
	"github.com/agentstation/statuspage/pkg/status"
)

// UserIDHeader carries the acting staff user on write requests.
const UserIDHeader = "X-User-ID"

// maxBodyBytes bounds request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	store     store.Store
	hub       *hub.Hub
	bridge    *bridge.Bridge
	cache     *cache.Cache
	stream    *sse.Handler
	upgrader  websocket.Upgrader
	logger    *zerolog.Logger
	startTime time.Time
	now       func() time.Time
}

// New creates a new Handlers instance.
func New(
	st store.Store,
	h *hub.Hub,
	b *bridge.Bridge,
	c *cache.Cache,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:     st,
		hub:       h,
		bridge:    b,
		cache:     c,
		stream:    sse.NewHandler(h, logger),
		upgrader:  upgrader,
		logger:    logger,
		startTime: time.Now(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// log returns the request-scoped logger set by the Logger middleware.
func (h *Handlers) log(r *http.Request) *zerolog.Logger {
	if l := logging.FromContext(r.Context()); l != logging.Default() {
		return l
	}
	return h.logger
}

// fail writes err as an API error, logging causes the client never sees.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.IsNotFound(err), errors.IsValidationError(err), errors.IsAlreadyExists(err),
		errors.IsForbidden(err), errors.IsUnauthorized(err):
	default:
		h.log(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	response.ErrorFromType(w, err)
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError("body", nil, "invalid JSON: "+err.Error())
	}
	return nil
}

// actingUser returns the X-User-ID of the request, writing 401 when absent.
func actingUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		response.Unauthorized(w, "Unauthorized", "missing "+UserIDHeader+" header")
		return "", false
	}
	return userID, true
}

// organization resolves the ?org= query for a write, creating the default
// organization and the user's membership on first use.
func (h *Handlers) organization(ctx context.Context, r *http.Request, userID string) (*status.Organization, error) {
	return store.EnsureOrganization(ctx, h.store, r.URL.Query().Get("org"), userID)
}

// orgFilter returns the organization id named by ?org=, or "" for all.
func (h *Handlers) orgFilter(ctx context.Context, r *http.Request) (string, error) {
	slug := r.URL.Query().Get("org")
	if slug == "" {
		return "", nil
	}
	org, err := h.store.Organization(ctx, slug)
	if err != nil {
		return "", err
	}
	return org.ID, nil
}

// slugOf returns the slug of the organization with id orgID.
func (h *Handlers) slugOf(ctx context.Context, orgID string) (string, error) {
	org, err := h.store.OrganizationByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	return org.Slug, nil
}

// committed invalidates the organization's cached reads after a write.
func (h *Handlers) committed(slug string) {
	h.cache.InvalidateOrganization(slug)
}

// required returns a ValidationError naming the first empty field.
func required(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return errors.NewValidationError(f[0], f[1], "is required")
		}
	}
	return nil
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/internal/server/cache"
	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/internal/store/memory"
	"github.com/agentstation/statuspage/pkg/events"
	"github.com/agentstation/statuspage/pkg/status"
)

// recorder is a hub connection that keeps every event it is sent.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) ID() string { return "recorder" }

func (r *recorder) Send(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

type fixture struct {
	h     *Handlers
	store *memory.Store
	hub   *hub.Hub
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	st := memory.New()
	hb := hub.New(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hb.Run(ctx)
	t.Cleanup(cancel)

	rec := &recorder{}
	hb.Register(rec)
	require.NoError(t, hb.Join(rec.ID(), "org-demo"))

	h := New(st, hb, bridge.New(hb, &logger), cache.New(time.Minute, 2*time.Minute), websocket.Upgrader{}, &logger)
	return &fixture{h: h, store: st, hub: hb, rec: rec}
}

// waitEvents waits until the recorder holds n events.
func (f *fixture) waitEvents(t *testing.T, n int) []events.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.rec.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return f.rec.snapshot()
}

// quiet asserts no further event arrives after the hub drained its queue.
func (f *fixture) quiet(t *testing.T, n int) {
	t.Helper()
	f.hub.ConnectionsOf("org-demo") // round-trips the hub loop
	assert.Len(t, f.rec.snapshot(), n)
}

type call struct {
	method string
	target string
	body   string
	user   string
	params map[string]string
}

func (f *fixture) do(t *testing.T, fn http.HandlerFunc, c call) (int, json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.target, strings.NewReader(c.body))
	if c.user != "" {
		req.Header.Set(UserIDHeader, c.user)
	}
	for k, v := range c.params {
		req.SetPathValue(k, v)
	}
	w := httptest.NewRecorder()
	fn(w, req)

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error json.RawMessage `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env.Data
}

func decodeInto[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestCreateService(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, f.h.HandleCreateService, call{method: http.MethodPost, target: "/api/services", body: `{"name":"API"}`})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(t, f.h.HandleCreateService, call{method: http.MethodPost, target: "/api/services", body: `{}`, user: "user_ada"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, f.h.HandleCreateService, call{method: http.MethodPost, target: "/api/services", body: `{"name":"API","status":"sideways"}`, user: "user_ada"})
	assert.Equal(t, http.StatusBadRequest, code)
	f.quiet(t, 0)

	code, data := f.do(t, f.h.HandleCreateService, call{
		method: http.MethodPost, target: "/api/services",
		body: `{"name":"API","status":"degraded performance"}`, user: "user_ada",
	})
	require.Equal(t, http.StatusCreated, code)
	svc := decodeInto[status.Service](t, data)
	assert.Equal(t, status.ServiceDegradedPerformance, svc.Status)

	got := f.waitEvents(t, 1)
	assert.Equal(t, events.ServiceStatusChanged, got[0].Kind)
	assert.Equal(t, "org-demo", got[0].Room)
	p := got[0].Payload.(events.ServiceStatusPayload)
	assert.Equal(t, svc.ID, p.ServiceID)
	assert.Equal(t, "DEGRADED_PERFORMANCE", p.Status)

	// The writer became a member of the default organization.
	org, err := f.store.Organization(context.Background(), "demo")
	require.NoError(t, err)
	m, err := f.store.MemberByUser(context.Background(), org.ID, "user_ada")
	require.NoError(t, err)
	assert.Equal(t, status.RoleOwner, m.Role)
}

func TestUpdateServiceAnnouncesOnlyStatusChanges(t *testing.T) {
	f := newFixture(t)
	_, data := f.do(t, f.h.HandleCreateService, call{method: http.MethodPost, target: "/api/services", body: `{"name":"API"}`, user: "user_ada"})
	svc := decodeInto[status.Service](t, data)
	f.waitEvents(t, 1)

	params := map[string]string{"id": svc.ID}
	code, data := f.do(t, f.h.HandleUpdateService, call{method: http.MethodPut, target: "/api/services/" + svc.ID, body: `{"description":"Public API"}`, user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)
	updated := decodeInto[status.Service](t, data)
	assert.Equal(t, "API", updated.Name)
	assert.Equal(t, "Public API", updated.Description)
	assert.Equal(t, status.ServiceOperational, updated.Status)
	f.quiet(t, 1)

	code, _ = f.do(t, f.h.HandleUpdateService, call{method: http.MethodPut, target: "/api/services/" + svc.ID, body: `{"status":"MAJOR_OUTAGE"}`, user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)
	got := f.waitEvents(t, 2)
	assert.Equal(t, "MAJOR_OUTAGE", got[1].Payload.(events.ServiceStatusPayload).Status)

	code, _ = f.do(t, f.h.HandleUpdateService, call{method: http.MethodPut, target: "/api/services/nope", body: `{"status":"MAJOR_OUTAGE"}`, user: "user_ada", params: map[string]string{"id": "nope"}})
	assert.Equal(t, http.StatusNotFound, code)
	f.quiet(t, 2)
}

func TestDeleteService(t *testing.T) {
	f := newFixture(t)
	_, data := f.do(t, f.h.HandleCreateService, call{method: http.MethodPost, target: "/api/services", body: `{"name":"API"}`, user: "user_ada"})
	svc := decodeInto[status.Service](t, data)
	f.waitEvents(t, 1)

	code, _ := f.do(t, f.h.HandleDeleteService, call{method: http.MethodDelete, target: "/api/services/" + svc.ID, user: "user_ada", params: map[string]string{"id": svc.ID}})
	assert.Equal(t, http.StatusOK, code)
	f.quiet(t, 1)

	code, _ = f.do(t, f.h.HandleGetService, call{method: http.MethodGet, target: "/api/services/" + svc.ID, user: "user_ada", params: map[string]string{"id": svc.ID}})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListServicesFiltersByOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := &status.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, f.store.CreateOrganization(ctx, acme))
	require.NoError(t, f.store.CreateService(ctx, &status.Service{OrganizationID: acme.ID, Name: "Storefront"}))
	f.do(t, f.h.HandleCreateService, call{method: http.MethodPost, target: "/api/services", body: `{"name":"API"}`, user: "user_ada"})

	_, data := f.do(t, f.h.HandleListServices, call{method: http.MethodGet, target: "/api/services", user: "user_ada"})
	assert.Len(t, decodeInto[[]status.Service](t, data), 2)

	_, data = f.do(t, f.h.HandleListServices, call{method: http.MethodGet, target: "/api/services?org=acme", user: "user_ada"})
	services := decodeInto[[]status.Service](t, data)
	require.Len(t, services, 1)
	assert.Equal(t, "Storefront", services[0].Name)

	code, _ := f.do(t, f.h.HandleListServices, call{method: http.MethodGet, target: "/api/services?org=ghost", user: "user_ada"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIncidentLifecycle(t *testing.T) {
	f := newFixture(t)

	code, data := f.do(t, f.h.HandleCreateIncident, call{method: http.MethodPost, target: "/api/incidents", body: `{"title":"DB down"}`, user: "user_ada"})
	require.Equal(t, http.StatusCreated, code)
	inc := decodeInto[status.Incident](t, data)
	assert.Equal(t, status.IncidentInvestigating, inc.Status)
	assert.Equal(t, status.SeverityMinor, inc.Severity)

	got := f.waitEvents(t, 1)
	assert.Equal(t, events.IncidentUpdated, got[0].Kind, "browsers resync on incident-updated only")
	assert.Equal(t, "New incident: DB down", got[0].Payload.(events.IncidentPayload).Message)

	params := map[string]string{"id": inc.ID}
	code, _ = f.do(t, f.h.HandleAddIncidentUpdate, call{method: http.MethodPost, target: "/api/incidents/x/updates", body: `{"message":"no status"}`, user: "user_ada", params: params})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = f.do(t, f.h.HandleAddIncidentUpdate, call{method: http.MethodPost, target: "/api/incidents/x/updates", body: `{"status":"resolved","message":"Fixed"}`, user: "user_ada", params: params})
	require.Equal(t, http.StatusCreated, code)
	upd := decodeInto[status.IncidentUpdate](t, data)
	assert.Equal(t, status.IncidentResolved, upd.Status)

	got = f.waitEvents(t, 2)
	p := got[1].Payload.(events.IncidentPayload)
	assert.Equal(t, events.IncidentUpdated, got[1].Kind)
	assert.Equal(t, inc.ID, p.IncidentID)
	assert.Equal(t, "RESOLVED", p.Status)
	assert.Equal(t, "Fixed", p.Message)

	_, data = f.do(t, f.h.HandleGetIncident, call{method: http.MethodGet, target: "/api/incidents/" + inc.ID, user: "user_ada", params: params})
	resolved := decodeInto[status.Incident](t, data)
	assert.Equal(t, status.IncidentResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Len(t, resolved.Updates, 1)

	code, _ = f.do(t, f.h.HandleAddIncidentUpdate, call{method: http.MethodPost, target: "/api/incidents/x/updates", body: `{"status":"MONITORING"}`, user: "user_ada", params: map[string]string{"id": "ghost"}})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMaintenanceLifecycle(t *testing.T) {
	f := newFixture(t)
	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	end := start.Add(time.Hour)
	body := `{"title":"Upgrade","scheduledStart":"` + start.Format(time.RFC3339) + `","scheduledEnd":"` + end.Format(time.RFC3339) + `"}`

	code, _ := f.do(t, f.h.HandleCreateMaintenance, call{method: http.MethodPost, target: "/api/maintenance", body: `{"title":"Upgrade"}`, user: "user_ada"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data := f.do(t, f.h.HandleCreateMaintenance, call{method: http.MethodPost, target: "/api/maintenance", body: body, user: "user_ada"})
	require.Equal(t, http.StatusCreated, code)
	m := decodeInto[status.Maintenance](t, data)
	assert.Equal(t, status.MaintenanceScheduled, m.Status)
	assert.True(t, start.Equal(m.ScheduledStart))

	params := map[string]string{"id": m.ID}
	code, data = f.do(t, f.h.HandleUpdateMaintenance, call{method: http.MethodPut, target: "/api/maintenance/" + m.ID, body: `{"status":"in progress"}`, user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, status.MaintenanceInProgress, decodeInto[status.Maintenance](t, data).Status)

	bad := `{"scheduledEnd":"` + start.Add(-time.Hour).Format(time.RFC3339) + `"}`
	code, _ = f.do(t, f.h.HandleUpdateMaintenance, call{method: http.MethodPut, target: "/api/maintenance/" + m.ID, body: bad, user: "user_ada", params: params})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, f.h.HandleDeleteMaintenance, call{method: http.MethodDelete, target: "/api/maintenance/" + m.ID, user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)

	got := f.waitEvents(t, 3)
	assert.Equal(t, []events.Kind{events.MaintenanceUpdated, events.MaintenanceUpdated, events.MaintenanceUpdated},
		[]events.Kind{got[0].Kind, got[1].Kind, got[2].Kind})
	assert.Equal(t, "SCHEDULED", got[0].Payload.(events.MaintenancePayload).Status)
	assert.Equal(t, "IN_PROGRESS", got[1].Payload.(events.MaintenancePayload).Status)
	f.quiet(t, 3)
}

func TestTeamsAndMembers(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, f.h.HandleCreateTeam, call{method: http.MethodPost, target: "/api/teams", body: `{}`, user: "user_ada"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data := f.do(t, f.h.HandleCreateTeam, call{method: http.MethodPost, target: "/api/teams", body: `{"name":"Platform"}`, user: "user_ada"})
	require.Equal(t, http.StatusCreated, code)
	team := decodeInto[status.Team](t, data)
	require.Len(t, team.Members, 1)
	owner := team.Members[0]
	assert.Equal(t, status.RoleOwner, owner.Role)
	assert.True(t, strings.HasPrefix(team.Slug, "platform-"))

	teamParams := map[string]string{"teamId": team.ID}
	addBody := `{"name":"Lin","email":"lin@example.com","role":"member"}`

	code, _ = f.do(t, f.h.HandleAddMember, call{method: http.MethodPost, target: "/api/teams/x/members", body: addBody, user: "user_stranger", params: teamParams})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, f.h.HandleAddMember, call{method: http.MethodPost, target: "/api/teams/x/members", body: `{"name":"Lin"}`, user: "user_ada", params: teamParams})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = f.do(t, f.h.HandleAddMember, call{method: http.MethodPost, target: "/api/teams/x/members", body: addBody, user: "user_ada", params: teamParams})
	require.Equal(t, http.StatusCreated, code)
	lin := decodeInto[status.Member](t, data)
	assert.Equal(t, "user_lin_example_com", lin.UserID)

	code, _ = f.do(t, f.h.HandleAddMember, call{method: http.MethodPost, target: "/api/teams/x/members", body: addBody, user: "user_ada", params: teamParams})
	assert.Equal(t, http.StatusConflict, code)

	linParams := map[string]string{"teamId": team.ID, "memberId": lin.ID}
	ownerParams := map[string]string{"teamId": team.ID, "memberId": owner.ID}

	// A MEMBER cannot change roles.
	code, _ = f.do(t, f.h.HandleUpdateMemberRole, call{method: http.MethodPut, target: "/", body: `{"role":"ADMIN"}`, user: lin.UserID, params: ownerParams})
	assert.Equal(t, http.StatusForbidden, code)

	code, data = f.do(t, f.h.HandleUpdateMemberRole, call{method: http.MethodPut, target: "/", body: `{"role":"ADMIN"}`, user: "user_ada", params: linParams})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, status.RoleAdmin, decodeInto[status.Member](t, data).Role)

	// The last owner stays.
	code, _ = f.do(t, f.h.HandleRemoveMember, call{method: http.MethodDelete, target: "/", user: lin.UserID, params: ownerParams})
	assert.Equal(t, http.StatusBadRequest, code)

	// Only the owner transfers ownership.
	code, _ = f.do(t, f.h.HandleMemberAction, call{method: http.MethodPatch, target: "/", body: `{"action":"transfer-ownership"}`, user: lin.UserID, params: ownerParams})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, f.h.HandleMemberAction, call{method: http.MethodPatch, target: "/", body: `{"action":"promote"}`, user: "user_ada", params: linParams})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data = f.do(t, f.h.HandleMemberAction, call{method: http.MethodPatch, target: "/", body: `{"action":"transfer-ownership"}`, user: "user_ada", params: linParams})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, status.RoleOwner, decodeInto[status.Member](t, data).Role)
	former, err := f.store.Member(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RoleAdmin, former.Role)

	code, _ = f.do(t, f.h.HandleRemoveMember, call{method: http.MethodDelete, target: "/", user: lin.UserID, params: ownerParams})
	require.Equal(t, http.StatusOK, code)

	got := f.waitEvents(t, 6)
	kinds := make([]events.Kind, len(got))
	for i, e := range got {
		kinds[i] = e.Kind
		assert.Equal(t, "org-demo", e.Room)
	}
	assert.Equal(t, []events.Kind{
		events.TeamCreated,
		events.TeamMemberAdded,
		events.TeamMemberRoleChange,
		events.TeamMemberRoleChange,
		events.TeamMemberRoleChange,
		events.TeamMemberRemoved,
	}, kinds)
	assert.Equal(t, "ADMIN", got[2].Payload.(events.TeamMemberPayload).NewRole)
}

func TestUpdateAndDeleteTeam(t *testing.T) {
	f := newFixture(t)
	_, data := f.do(t, f.h.HandleCreateTeam, call{method: http.MethodPost, target: "/api/teams", body: `{"name":"Platform"}`, user: "user_ada"})
	team := decodeInto[status.Team](t, data)
	params := map[string]string{"teamId": team.ID}

	code, _ := f.do(t, f.h.HandleUpdateTeam, call{method: http.MethodPut, target: "/", body: `{"name":"Core"}`, user: "user_stranger", params: params})
	assert.Equal(t, http.StatusForbidden, code)

	code, data = f.do(t, f.h.HandleUpdateTeam, call{method: http.MethodPut, target: "/", body: `{"name":"Core"}`, user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Core", decodeInto[status.Team](t, data).Name)

	_, data = f.do(t, f.h.HandleListTeams, call{method: http.MethodGet, target: "/api/teams", user: "user_ada"})
	assert.Len(t, decodeInto[[]status.Team](t, data), 1)

	code, _ = f.do(t, f.h.HandleDeleteTeam, call{method: http.MethodDelete, target: "/", user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, f.h.HandleDeleteTeam, call{method: http.MethodDelete, target: "/", user: "user_ada", params: params})
	assert.Equal(t, http.StatusNotFound, code)

	got := f.waitEvents(t, 3)
	assert.Equal(t, events.TeamUpdated, got[1].Kind)
	assert.Equal(t, events.TeamDeleted, got[2].Kind)
	assert.Equal(t, team.ID, got[2].Payload.(events.TeamPayload).TeamID)
}

func TestPublicStatus(t *testing.T) {
	f := newFixture(t)

	code, data := f.do(t, f.h.HandlePublicStatus, call{method: http.MethodGet, target: "/api/public/status"})
	require.Equal(t, http.StatusOK, code)
	ps := decodeInto[status.PublicStatus](t, data)
	assert.Equal(t, store.DefaultOrganization.Name, ps.Organization.Name)

	code, _ = f.do(t, f.h.HandlePublicStatus, call{method: http.MethodGet, target: "/api/public/status?org=ghost"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthReadyStats(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, f.h.HandleHealth, call{method: http.MethodGet, target: "/health"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, f.h.HandleReady, call{method: http.MethodGet, target: "/api/ready"})
	assert.Equal(t, http.StatusOK, code)

	code, data := f.do(t, f.h.HandleStats, call{method: http.MethodGet, target: "/api/stats"})
	require.Equal(t, http.StatusOK, code)
	stats := decodeInto[StatsResponse](t, data)
	assert.Equal(t, 1, stats.Realtime.Connections)
	assert.Equal(t, 1, stats.Realtime.RoomSizes["org-demo"])
	assert.NotZero(t, stats.Process.PID)
	assert.Positive(t, stats.Process.Goroutines)
}

func TestUserIDFromEmail(t *testing.T) {
	assert.Equal(t, "user_ada_lovelace_example_com", userIDFromEmail(" Ada.Lovelace@Example.com "))
}

// failingStore reads through to memory but rejects the writes below.
type failingStore struct {
	*memory.Store
}

func (failingStore) AddIncidentUpdate(context.Context, *status.IncidentUpdate) (*status.Incident, error) {
	return nil, assert.AnError
}

func (failingStore) SetIncidentStatus(context.Context, string, status.IncidentStatus) (*status.Incident, error) {
	return nil, assert.AnError
}

func (failingStore) TransferOwnership(context.Context, string, string) (*status.Member, *status.Member, error) {
	return nil, nil, assert.AnError
}

func TestFailedWriteAnnouncesNothing(t *testing.T) {
	f := newFixture(t)

	code, data := f.do(t, f.h.HandleCreateIncident, call{method: http.MethodPost, target: "/api/incidents", body: `{"title":"Queue backlog"}`, user: "user_ada"})
	require.Equal(t, http.StatusCreated, code)
	inc := decodeInto[status.Incident](t, data)
	f.waitEvents(t, 1)

	f.h.store = failingStore{f.store}
	params := map[string]string{"id": inc.ID}
	code, _ = f.do(t, f.h.HandleAddIncidentUpdate, call{method: http.MethodPost, target: "/api/incidents/x/updates", body: `{"status":"RESOLVED","message":"Fixed"}`, user: "user_ada", params: params})
	assert.Equal(t, http.StatusInternalServerError, code)
	code, _ = f.do(t, f.h.HandleUpdateIncident, call{method: http.MethodPut, target: "/api/incidents/x", body: `{"status":"RESOLVED"}`, user: "user_ada", params: params})
	assert.Equal(t, http.StatusInternalServerError, code)

	assert.Never(t, func() bool { return len(f.rec.snapshot()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	stored, err := f.store.Incident(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, status.IncidentInvestigating, stored.Status)
}

func TestFailedOwnershipTransferAnnouncesNothing(t *testing.T) {
	f := newFixture(t)
	_, data := f.do(t, f.h.HandleCreateTeam, call{method: http.MethodPost, target: "/api/teams", body: `{"name":"Platform"}`, user: "user_ada"})
	team := decodeInto[status.Team](t, data)
	owner := team.Members[0]
	_, data = f.do(t, f.h.HandleAddMember, call{method: http.MethodPost, target: "/", body: `{"name":"Lin","email":"lin@example.com","role":"member"}`, user: "user_ada", params: map[string]string{"teamId": team.ID}})
	lin := decodeInto[status.Member](t, data)
	f.waitEvents(t, 2)

	f.h.store = failingStore{f.store}
	code, _ := f.do(t, f.h.HandleMemberAction, call{method: http.MethodPatch, target: "/", body: `{"action":"transfer-ownership"}`, user: "user_ada", params: map[string]string{"teamId": team.ID, "memberId": lin.ID}})
	assert.Equal(t, http.StatusInternalServerError, code)

	assert.Never(t, func() bool { return len(f.rec.snapshot()) > 2 }, 100*time.Millisecond, 10*time.Millisecond)
	got, err := f.store.Member(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RoleOwner, got.Role)
	got, err = f.store.Member(context.Background(), lin.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RoleMember, got.Role)
}

func TestUpdateAndDeleteIncident(t *testing.T) {
	f := newFixture(t)
	_, data := f.do(t, f.h.HandleCreateIncident, call{method: http.MethodPost, target: "/api/incidents", body: `{"title":"DB down"}`, user: "user_ada"})
	inc := decodeInto[status.Incident](t, data)
	params := map[string]string{"id": inc.ID}

	code, _ := f.do(t, f.h.HandleUpdateIncident, call{method: http.MethodPut, target: "/", body: `{}`, user: "user_ada", params: params})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, f.h.HandleUpdateIncident, call{method: http.MethodPut, target: "/", body: `{"status":"exploded"}`, user: "user_ada", params: params})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, f.h.HandleUpdateIncident, call{method: http.MethodPut, target: "/", body: `{"status":"resolved"}`, user: "user_ada", params: map[string]string{"id": "ghost"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, data = f.do(t, f.h.HandleUpdateIncident, call{method: http.MethodPut, target: "/", body: `{"status":"resolved"}`, user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)
	resolved := decodeInto[status.Incident](t, data)
	assert.Equal(t, status.IncidentResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Empty(t, resolved.Updates)

	code, _ = f.do(t, f.h.HandleDeleteIncident, call{method: http.MethodDelete, target: "/", user: "user_ada", params: params})
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, f.h.HandleDeleteIncident, call{method: http.MethodDelete, target: "/", user: "user_ada", params: params})
	assert.Equal(t, http.StatusNotFound, code)

	got := f.waitEvents(t, 3)
	for _, e := range got {
		assert.Equal(t, events.IncidentUpdated, e.Kind)
		assert.Equal(t, inc.ID, e.Payload.(events.IncidentPayload).IncidentID)
	}
	p := got[1].Payload.(events.IncidentPayload)
	assert.Equal(t, "RESOLVED", p.Status)
	assert.Equal(t, "Incident status updated to RESOLVED", p.Message)
	f.quiet(t, 3)
}

func TestOrganizations(t *testing.T) {
	f := newFixture(t)

	code, data := f.do(t, f.h.HandleCreateOrganization, call{method: http.MethodPost, target: "/api/organizations", body: `{}`, user: "user_ada"})
	require.Equal(t, http.StatusCreated, code)
	def := decodeInto[status.Organization](t, data)
	assert.Equal(t, "default-org", def.Slug)
	assert.Equal(t, "Default Organization", def.Name)

	code, _ = f.do(t, f.h.HandleCreateOrganization, call{method: http.MethodPost, target: "/api/organizations", body: `{}`, user: "user_ada"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(t, f.h.HandleCreateOrganization, call{method: http.MethodPost, target: "/api/organizations", body: `{"name":"Acme","slug":"acme"}`, user: "user_ada"})
	require.Equal(t, http.StatusCreated, code)

	code, data = f.do(t, f.h.HandleListOrganizations, call{method: http.MethodGet, target: "/api/organizations", user: "user_ada"})
	require.Equal(t, http.StatusOK, code)
	orgs := decodeInto[[]status.Organization](t, data)
	require.Len(t, orgs, 2)
	assert.Equal(t, "acme", orgs[0].Slug, "newest first")

	req := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	w := httptest.NewRecorder()
	f.h.HandleListOrganizations(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/cmd/application"
	"github.com/agentstation/statuspage/pkg/events"
)

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(&application.Mock{}, cfg)
	require.NoError(t, err)
	srv.Start()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, ts
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	return cfg
}

// TestServerInitialization tests that New and Start complete without blocking.
func TestServerInitialization(t *testing.T) {
	done := make(chan struct{})
	var srv *Server
	var newErr error

	go func() {
		srv, newErr = New(&application.Mock{}, testConfig())
		if newErr == nil {
			srv.Start()
		}
		close(done)
	}()

	select {
	case <-done:
		require.NoError(t, newErr)
		require.NotNil(t, srv)
	case <-time.After(5 * time.Second):
		t.Fatal("server.New() deadlocked - did not complete within 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestShutdownWithoutStart(t *testing.T) {
	srv, err := New(&application.Mock{}, testConfig())
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestNewAppliesDefaults(t *testing.T) {
	srv, err := New(&application.Mock{}, Config{})
	require.NoError(t, err)
	assert.Equal(t, "/api/socket", srv.config.WSPath)
	assert.Equal(t, DefaultConfig().CacheTTL, srv.config.CacheTTL)
}

func TestRoutes(t *testing.T) {
	_, ts := startServer(t, testConfig())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/ready", http.StatusOK},
		{http.MethodGet, "/api/stats", http.StatusOK},
		{http.MethodGet, "/api/public/status", http.StatusOK},
		{http.MethodGet, "/api/public/status?org=missing", http.StatusNotFound},
		{http.MethodGet, "/api/services", http.StatusUnauthorized},
		{http.MethodPatch, "/api/services", http.StatusMethodNotAllowed},
		{http.MethodGet, "/favicon.ico", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuthKeepsRealtimeAndPublicOpen(t *testing.T) {
	t.Setenv("STATUSPAGE_API_KEY", "secret")
	cfg := testConfig()
	cfg.AuthEnabled = true
	_, ts := startServer(t, cfg)

	resp, err := http.Get(ts.URL + "/api/public/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/services", nil)
	req.Header.Set("X-User-ID", "user_ada")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestWriteReachesRoomMembers drives a committed write through the bridge,
// hub and websocket transport.
func TestWriteReachesRoomMembers(t *testing.T) {
	srv, ts := startServer(t, testConfig())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/socket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	ack, err := events.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, events.Connected, ack.Event)

	require.NoError(t, conn.WriteJSON(events.ClientMessage{Action: events.ActionJoin, RoomKey: "demo"}))
	require.Eventually(t, func() bool {
		return len(srv.Hub().ConnectionsOf("org-demo")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/services",
		strings.NewReader(`{"name":"API","status":"major outage"}`))
	req.Header.Set("X-User-ID", "user_ada")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "MAJOR_OUTAGE", body.Data.Status)

	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	msg, err := events.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, events.ServiceStatusChanged, msg.Event)

	payload, err := msg.Payload()
	require.NoError(t, err)
	p, ok := payload.(*events.ServiceStatusPayload)
	require.True(t, ok)
	assert.Equal(t, body.Data.ID, p.ServiceID)
	assert.Equal(t, "MAJOR_OUTAGE", p.Status)
}

func TestPublicStatusCacheInvalidatedByWrites(t *testing.T) {
	_, ts := startServer(t, testConfig())

	get := func() string {
		resp, err := http.Get(ts.URL + "/api/public/status?org=demo")
		require.NoError(t, err)
		resp.Body.Close()
		return resp.Header.Get("X-Cache")
	}

	assert.Equal(t, "MISS", get())
	assert.Equal(t, "HIT", get())

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/services", strings.NewReader(`{"name":"API"}`))
	req.Header.Set("X-User-ID", "user_ada")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "MISS", get())
}

package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/pkg/events"
)

type sseEvent struct {
	kind string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var e sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && e.kind != "":
			return e
		case strings.HasPrefix(line, "event: "):
			e.kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			e.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func startStream(t *testing.T, h *hub.Hub, query string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	srv := httptest.NewServer(NewHandler(h, &logger))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+query, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body), cancel
}

func runHub(t *testing.T, opts ...hub.Option) *hub.Hub {
	t.Helper()
	logger := zerolog.Nop()
	h := hub.New(&logger, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func TestStreamDeliversRoomEvents(t *testing.T) {
	h := runHub(t)
	r, _ := startStream(t, h, "?org=acme")

	ack := readEvent(t, r)
	assert.Equal(t, "connected", ack.kind)
	assert.Contains(t, ack.data, "connectionId")

	// Other rooms are not delivered.
	h.Publish("org-demo", events.Event{Kind: events.IncidentUpdated, Payload: events.IncidentPayload{IncidentID: "other"}})
	h.Publish("org-acme", events.Event{Kind: events.IncidentUpdated, Payload: events.IncidentPayload{IncidentID: "inc1", Status: "RESOLVED"}})

	got := readEvent(t, r)
	assert.Equal(t, string(events.IncidentUpdated), got.kind)
	var payload events.IncidentPayload
	require.NoError(t, json.Unmarshal([]byte(got.data), &payload))
	assert.Equal(t, "inc1", payload.IncidentID)
	assert.Equal(t, "RESOLVED", payload.Status)
}

func TestStreamDefaultsToDemoAndUnregistersOnClose(t *testing.T) {
	h := runHub(t)
	r, cancel := startStream(t, h, "")
	readEvent(t, r)

	assert.Len(t, h.ConnectionsOf("org-demo"), 1)

	cancel()
	require.Eventually(t, func() bool { return h.Stats().Connections == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectedWhenRoomFull(t *testing.T) {
	h := runHub(t, hub.WithMaxPerRoom(1))
	r, _ := startStream(t, h, "?org=demo")
	readEvent(t, r)

	logger := zerolog.Nop()
	srv := httptest.NewServer(NewHandler(h, &logger))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "?org=demo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamSendAfterClose(t *testing.T) {
	s := &stream{id: "s1", events: make(chan events.Event, 1), done: make(chan struct{})}
	require.NoError(t, s.Send(events.Event{}))
	assert.Error(t, s.Send(events.Event{}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Error(t, s.Send(events.Event{}))
}

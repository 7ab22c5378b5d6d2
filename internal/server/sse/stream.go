// Package sse streams one organization's room events over Server-Sent
// Events, for consumers that cannot hold a websocket.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/internal/realtime/rooms"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
	"github.com/agentstation/statuspage/pkg/status"
)

// Hub is the part of the realtime hub a stream needs.
type Hub interface {
	Register(conn hub.Connection)
	Unregister(id string)
	Join(id, room string) error
}

const (
	defaultHeartbeat = 30 * time.Second
	bufferSize       = 256
)

// Handler serves GET /api/socket/stream?org=<slug>.
type Handler struct {
	hub       Hub
	logger    *zerolog.Logger
	heartbeat time.Duration
}

// NewHandler creates an SSE handler over a hub.
func NewHandler(h Hub, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{hub: h, logger: logger, heartbeat: defaultHeartbeat}
}

// stream is one SSE subscriber. It implements hub.Connection.
type stream struct {
	id     string
	events chan events.Event
	done   chan struct{}
	once   sync.Once
}

func (s *stream) ID() string { return s.id }

// Send drops the event when the subscriber is not keeping up; the next
// event still triggers a resync.
func (s *stream) Send(e events.Event) error {
	select {
	case <-s.done:
		return errors.ErrClosed
	case s.events <- e:
		return nil
	default:
		return errors.New("sse buffer full")
	}
}

func (s *stream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// ServeHTTP handles one SSE connection for its lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	slug := r.URL.Query().Get("org")
	if slug == "" {
		slug = status.DefaultOrganizationSlug
	}
	room := rooms.RoomName(slug)

	s := &stream{
		id:     xid.New().String(),
		events: make(chan events.Event, bufferSize),
		done:   make(chan struct{}),
	}
	logger := h.logger.With().Str("connection_id", s.id).Str("room", room).Logger()

	h.hub.Register(s)
	defer h.hub.Unregister(s.id)

	if err := h.hub.Join(s.id, room); err != nil {
		logger.Warn().Err(err).Msg("SSE join rejected")
		http.Error(w, "Stream unavailable", http.StatusServiceUnavailable)
		return
	}

	// Streams outlive the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := writeEvent(w, flusher, events.Connected, events.ConnectedPayload{ConnectionID: s.id}); err != nil {
		return
	}
	logger.Debug().Msg("SSE stream opened")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e := <-s.events:
			if err := writeEvent(w, flusher, e.Kind, e.Payload); err != nil {
				logger.Debug().Err(err).Msg("SSE write failed")
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-s.done:
			return
		case <-r.Context().Done():
			logger.Debug().Msg("SSE stream closed")
			return
		}
	}
}

// writeEvent writes one "event:/data:" block and flushes it.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, kind events.Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

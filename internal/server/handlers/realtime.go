package handlers

import (
	"net/http"

	"github.com/rs/xid"

	ws "github.com/agentstation/statuspage/internal/server/websocket"
)

// HandleWebSocket handles websocket connections at /api/socket. The client
// joins organization rooms with join-organization messages.
// @Summary Realtime websocket
// @Description Websocket carrying room-scoped status events.
// @Tags realtime
// @Success 101 "Switching Protocols"
// @Router /api/socket [get].
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log(r).Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(xid.New().String(), h.hub, conn, h.logger)
	go client.Serve()
}

// HandleSSE handles Server-Sent Events at /api/socket/stream?org=<slug>.
// @Summary Realtime event stream
// @Description Server-Sent Events stream of one organization's room.
// @Tags realtime
// @Produce text/event-stream
// @Param org query string false "Organization slug" default(demo)
// @Success 200 "Event stream"
// @Router /api/socket/stream [get].
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeHTTP(w, r)
}

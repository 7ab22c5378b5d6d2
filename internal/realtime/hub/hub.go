// Package hub fans room events out to live connections.
//
// A Hub owns the room registry and mutates it only from its Run loop. Every
// request (register, join, leave, publish, query) travels through one FIFO
// command channel, so commands issued in sequence are applied in sequence
// and events for a room reach its members in publish order.
package hub

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/internal/realtime/backplane"
	"github.com/agentstation/statuspage/internal/realtime/rooms"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
)

// Connection is a transport endpoint the hub can deliver to. Send must not
// block: implementations enqueue and return an error when they cannot.
type Connection interface {
	ID() string
	Send(events.Event) error
}

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 2 * time.Second
)

type opcode int

const (
	opRegister opcode = iota
	opUnregister
	opJoin
	opLeave
	opPublish
	opConnectionsOf
	opRooms
)

type command struct {
	op    opcode
	conn  Connection
	id    string
	room  string
	event events.Event
	reply chan any
}

// Stats is a point-in-time view of hub activity.
type Stats struct {
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Published   uint64         `json:"published"`
	Delivered   uint64         `json:"delivered"`
	Failed      uint64         `json:"failed"`
	Dropped     uint64         `json:"dropped"`
	RoomSizes   map[string]int `json:"room_sizes,omitempty"`
	Backplane   string         `json:"backplane"`
	StartedAt   time.Time      `json:"started_at"`
}

// Hub is the process-wide event fan-out.
type Hub struct {
	registry *rooms.Registry
	conns    map[string]Connection

	commands chan command
	outbound chan events.Event
	done     chan struct{}
	started  chan struct{}
	once     sync.Once

	bp             backplane.Backplane
	publishTimeout time.Duration
	logger         *zerolog.Logger

	connections atomic.Int64
	roomCount   atomic.Int64
	published   atomic.Uint64
	delivered   atomic.Uint64
	failed      atomic.Uint64
	dropped     atomic.Uint64
	startedAt   atomic.Pointer[time.Time]
}

// Option configures a Hub.
type Option func(*Hub)

// WithBackplane routes Publish through bp so other instances see the events.
func WithBackplane(bp backplane.Backplane) Option {
	return func(h *Hub) { h.bp = bp }
}

// WithMaxPerRoom caps the connections of a single room.
func WithMaxPerRoom(n int) Option {
	return func(h *Hub) { h.registry = rooms.NewRegistry(rooms.WithMaxPerRoom(n)) }
}

// WithQueueSize sets the command queue capacity.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.commands = make(chan command, n)
			h.outbound = make(chan events.Event, n)
		}
	}
}

// New creates a hub. Call Run to start dispatching.
func New(logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		registry:       rooms.NewRegistry(),
		conns:          make(map[string]Connection),
		commands:       make(chan command, defaultQueueSize),
		outbound:       make(chan events.Event, defaultQueueSize),
		done:           make(chan struct{}),
		started:        make(chan struct{}),
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run dispatches commands until ctx is cancelled, then closes every
// connection that implements io.Closer.
func (h *Hub) Run(ctx context.Context) {
	now := time.Now().UTC()
	h.startedAt.Store(&now)

	if h.bp != nil {
		if err := h.bp.Subscribe(ctx, h.receive); err != nil {
			h.logger.Error().Err(err).Msg("Backplane subscribe failed, delivering locally only")
			h.bp = nil
		} else {
			go h.forward(ctx)
		}
	}
	close(h.started)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

func (h *Hub) shutdown() {
	h.once.Do(func() { close(h.done) })
	for id, conn := range h.conns {
		if c, ok := conn.(io.Closer); ok {
			_ = c.Close()
		}
		h.registry.Unregister(id)
	}
	h.conns = make(map[string]Connection)
	h.connections.Store(0)
	h.roomCount.Store(0)
	h.logger.Info().Msg("Realtime hub shut down")
}

func (h *Hub) handle(cmd command) {
	switch cmd.op {
	case opRegister:
		id := cmd.conn.ID()
		if _, ok := h.conns[id]; !ok {
			h.conns[id] = cmd.conn
		}
		h.registry.Register(id)
		h.logger.Debug().
			Str("connection_id", id).
			Int("total_connections", h.registry.ConnectionCount()).
			Msg("Connection registered")

	case opUnregister:
		if _, ok := h.conns[cmd.id]; !ok {
			break
		}
		left := h.registry.Unregister(cmd.id)
		delete(h.conns, cmd.id)
		h.logger.Debug().
			Str("connection_id", cmd.id).
			Strs("rooms", left).
			Int("total_connections", h.registry.ConnectionCount()).
			Msg("Connection unregistered")

	case opJoin:
		err := h.registry.Join(cmd.id, cmd.room)
		if err == nil {
			h.logger.Debug().Str("connection_id", cmd.id).Str("room", cmd.room).Msg("Joined room")
		}
		cmd.reply <- err

	case opLeave:
		if h.registry.Leave(cmd.id, cmd.room) {
			h.logger.Debug().Str("connection_id", cmd.id).Str("room", cmd.room).Msg("Left room")
		}

	case opPublish:
		h.deliver(cmd.room, cmd.event)

	case opConnectionsOf:
		cmd.reply <- h.registry.ConnectionsOf(cmd.room)

	case opRooms:
		sizes := make(map[string]int)
		for _, room := range h.registry.Rooms() {
			sizes[room] = h.registry.RoomSize(room)
		}
		cmd.reply <- sizes
	}

	h.connections.Store(int64(h.registry.ConnectionCount()))
	h.roomCount.Store(int64(h.registry.RoomCount()))
}

// deliver sends e to a snapshot of the room's members. A failing connection
// is counted and skipped.
func (h *Hub) deliver(room string, e events.Event) {
	members := h.registry.ConnectionsOf(room)
	for _, id := range members {
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		if err := conn.Send(e); err != nil {
			h.failed.Add(1)
			h.logger.Warn().
				Err(err).
				Str("connection_id", id).
				Str("room", room).
				Str("kind", string(e.Kind)).
				Msg("Failed to deliver event")
			continue
		}
		h.delivered.Add(1)
	}
	h.logger.Debug().
		Str("room", room).
		Str("kind", string(e.Kind)).
		Int("members", len(members)).
		Msg("Event dispatched")
}

// enqueue hands a command to the loop, blocking until accepted or the hub
// stops.
func (h *Hub) enqueue(cmd command) bool {
	select {
	case h.commands <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// Register adds a connection. Commands queue until Run starts.
func (h *Hub) Register(conn Connection) {
	h.enqueue(command{op: opRegister, conn: conn})
}

// Unregister removes a connection from the hub and from every room.
func (h *Hub) Unregister(id string) {
	h.enqueue(command{op: opUnregister, id: id})
}

// Join subscribes a registered connection to a room. It returns an
// UnknownConnectionError for unregistered ids, ErrRoomFull when the room is
// capped, and ErrClosed once the hub has stopped.
func (h *Hub) Join(id, room string) error {
	reply := make(chan any, 1)
	if !h.enqueue(command{op: opJoin, id: id, room: room, reply: reply}) {
		return errors.ErrClosed
	}
	select {
	case v := <-reply:
		if v == nil {
			return nil
		}
		return v.(error)
	case <-h.done:
		return errors.ErrClosed
	}
}

// Leave unsubscribes a connection from a room. Non-members are ignored.
func (h *Hub) Leave(id, room string) {
	h.enqueue(command{op: opLeave, id: id, room: room})
}

// Publish announces an event to a room on every instance. It never blocks:
// when the queue is full the event is dropped and counted.
func (h *Hub) Publish(room string, e events.Event) {
	e.Room = room
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	h.published.Add(1)

	if h.usingBackplane() {
		select {
		case h.outbound <- e:
		default:
			h.drop(room, e, "Backplane queue full, event dropped")
		}
		return
	}
	h.PublishLocal(room, e)
}

// PublishLocal delivers to this instance's connections only.
func (h *Hub) PublishLocal(room string, e events.Event) {
	e.Room = room
	select {
	case h.commands <- command{op: opPublish, room: room, event: e}:
	case <-h.done:
	default:
		h.drop(room, e, "Hub queue full, event dropped")
	}
}

func (h *Hub) drop(room string, e events.Event, msg string) {
	h.dropped.Add(1)
	h.logger.Warn().Str("room", room).Str("kind", string(e.Kind)).Msg(msg)
}

// usingBackplane reports whether Run attached a backplane. Before Run
// starts, events queue for local delivery.
func (h *Hub) usingBackplane() bool {
	select {
	case <-h.started:
		return h.bp != nil
	default:
		return false
	}
}

// forward publishes queued events to the backplane one at a time, so the
// backplane sees them in publish order.
func (h *Hub) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-h.outbound:
			pctx, cancel := context.WithTimeout(ctx, h.publishTimeout)
			err := h.bp.Publish(pctx, e.Room, e)
			cancel()
			if err != nil {
				h.logger.Warn().
					Err(err).
					Str("room", e.Room).
					Str("kind", string(e.Kind)).
					Msg("Backplane publish failed, delivering locally")
				h.PublishLocal(e.Room, e)
			}
		}
	}
}

func (h *Hub) receive(room string, e events.Event) {
	h.PublishLocal(room, e)
}

// ConnectionsOf returns a snapshot of a room's member ids.
func (h *Hub) ConnectionsOf(room string) []string {
	reply := make(chan any, 1)
	if !h.enqueue(command{op: opConnectionsOf, room: room, reply: reply}) {
		return nil
	}
	select {
	case v := <-reply:
		return v.([]string)
	case <-h.done:
		return nil
	}
}

// Stats reports counters and, when the loop is running, per-room sizes.
func (h *Hub) Stats() Stats {
	s := Stats{
		Connections: int(h.connections.Load()),
		Rooms:       int(h.roomCount.Load()),
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Failed:      h.failed.Load(),
		Dropped:     h.dropped.Load(),
		Backplane:   "none",
	}
	if t := h.startedAt.Load(); t != nil {
		s.StartedAt = *t
	}
	if h.usingBackplane() {
		s.Backplane = backplaneName(h.bp)
	}

	select {
	case <-h.started:
	default:
		return s
	}
	reply := make(chan any, 1)
	if h.enqueue(command{op: opRooms, reply: reply}) {
		select {
		case v := <-reply:
			s.RoomSizes = v.(map[string]int)
		case <-h.done:
		}
	}
	return s
}

func backplaneName(bp backplane.Backplane) string {
	switch bp.(type) {
	case *backplane.Redis:
		return "redis"
	case *backplane.Local:
		return "local"
	default:
		return "custom"
	}
}

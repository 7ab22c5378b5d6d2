package client

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
)

// Connection defaults.
const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultWSPath            = "/api/socket"
)

const writeWait = 10 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithReconnectAttempts bounds consecutive failed dials after a drop.
func WithReconnectAttempts(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.attempts = n
		}
	}
}

// WithReconnectDelay sets the fixed delay between dials.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithWSPath sets the websocket endpoint path on the server.
func WithWSPath(path string) Option {
	return func(c *Controller) { c.path = path }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Controller) { c.dialer = d }
}

// WithLogger sets the controller's logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Controller maintains one shared realtime connection.
type Controller struct {
	url      string
	path     string
	dialer   *websocket.Dialer
	attempts int
	delay    time.Duration
	logger   *zerolog.Logger

	state atomic.Int32

	mu           sync.Mutex
	conn         *websocket.Conn
	connectionID string
	room         string
	subs         map[int]Handlers
	watchers     map[int]func(State)
	orgWatchers  map[int]func(string)
	nextID       int
	running      bool
	closed       bool
	cancel       context.CancelFunc
	done         chan struct{}

	// roomMu is held from reading the room key until the join or leave
	// frames for it are written, so a room switch never interleaves with
	// the join sent on connect.
	roomMu sync.Mutex
	// writeMu serializes websocket writes.
	writeMu sync.Mutex
}

// New creates a Controller for the server at baseURL (http, https, ws or
// wss). It does not connect until Connect is called.
func New(baseURL string, opts ...Option) (*Controller, error) {
	c := &Controller{
		path:        DefaultWSPath,
		dialer:      websocket.DefaultDialer,
		attempts:    DefaultReconnectAttempts,
		delay:       DefaultReconnectDelay,
		subs:        make(map[int]Handlers),
		watchers:    make(map[int]func(State)),
		orgWatchers: make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		nop := zerolog.Nop()
		c.logger = &nop
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewValidationError("baseURL", baseURL, err.Error())
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, errors.NewValidationError("baseURL", baseURL, "scheme must be http, https, ws or wss")
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.path
	c.url = u.String()
	return c, nil
}

// URL returns the websocket URL the controller dials.
func (c *Controller) URL() string { return c.url }

// State returns the current connection state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Connected reports whether the connection is up.
func (c *Controller) Connected() bool { return c.State() == Connected }

// ConnectionID returns the id the server assigned to the current
// connection, or "" before the handshake.
func (c *Controller) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Organization returns the room key the controller joins.
func (c *Controller) Organization() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Connect starts the connection loop and returns immediately. Calling it
// again while the loop runs is a no-op. The loop ends when ctx is done,
// when Close is called, or when reconnection attempts run out.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrClosed
	}
	if c.running {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)
	return nil
}

// SetOrganization switches the joined room: when connected, the old room is
// left and the new one joined. The key is remembered for later connects.
func (c *Controller) SetOrganization(slug string) {
	slug = strings.TrimSpace(slug)
	c.roomMu.Lock()
	c.mu.Lock()
	old := c.room
	c.room = slug
	conn := c.conn
	c.mu.Unlock()

	if conn != nil && old != slug {
		if old != "" {
			c.send(conn, events.ClientMessage{Action: events.ActionLeave, RoomKey: old})
		}
		if slug != "" {
			c.send(conn, events.ClientMessage{Action: events.ActionJoin, RoomKey: slug})
		}
	}
	c.roomMu.Unlock()

	if old == slug {
		return
	}
	c.mu.Lock()
	watchers := make([]func(string), 0, len(c.orgWatchers))
	for _, fn := range c.orgWatchers {
		watchers = append(watchers, fn)
	}
	c.mu.Unlock()
	for _, fn := range watchers {
		fn(slug)
	}
}

// OnOrganizationChange registers fn for every change of the room key and
// returns a function that removes it. fn runs on the caller of
// SetOrganization.
func (c *Controller) OnOrganizationChange(fn func(slug string)) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.orgWatchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.orgWatchers, id)
			c.mu.Unlock()
		})
	}
}

// Subscribe registers callbacks and returns a function that removes them.
// Removing a subscriber leaves the shared connection open.
func (c *Controller) Subscribe(h Handlers) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = h
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// OnStateChange registers fn for every state transition and returns a
// function that removes it. fn runs on the connection goroutine.
func (c *Controller) OnStateChange(fn func(State)) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

// Close tears the connection down for good. It is safe to call more than
// once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.setState(Disconnected)
	return nil
}

func (c *Controller) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.logger.Debug().Str("state", s.String()).Msg("Realtime connection state changed")

	c.mu.Lock()
	watchers := make([]func(State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		watchers = append(watchers, fn)
	}
	c.mu.Unlock()
	for _, fn := range watchers {
		fn(s)
	}
}

// loop dials, serves one connection, and redials with a fixed delay until
// the failure budget is spent.
func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.setState(Disconnected)
		close(done)
	}()

	c.setState(Connecting)
	failures := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.logger.Warn().Err(err).Int("attempt", failures).Str("url", c.url).Msg("Realtime dial failed")
			if failures > c.attempts {
				c.logger.Warn().Int("attempts", c.attempts).Msg("Realtime reconnection attempts exhausted")
				return
			}
			c.setState(Reconnecting)
			if !c.wait(ctx) {
				return
			}
			continue
		}

		failures = 0
		c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.setState(Reconnecting)
		if !c.wait(ctx) {
			return
		}
	}
}

func (c *Controller) wait(ctx context.Context) bool {
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// serve runs one connection: it rejoins the room, then reads until the
// connection drops or ctx ends.
func (c *Controller) serve(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		c.roomMu.Lock()
		c.mu.Lock()
		c.conn = nil
		c.connectionID = ""
		c.mu.Unlock()
		c.roomMu.Unlock()
		_ = conn.Close()
	}()

	// Room membership does not survive a reconnect. The join is written
	// before any watcher learns of the connection.
	c.roomMu.Lock()
	c.mu.Lock()
	c.conn = conn
	room := c.room
	c.mu.Unlock()
	if room != "" {
		c.send(conn, events.ClientMessage{Action: events.ActionJoin, RoomKey: room})
	}
	c.roomMu.Unlock()

	c.setState(Connected)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("Realtime connection dropped")
			}
			return
		}
		msg, err := events.Decode(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("Ignoring malformed realtime frame")
			continue
		}
		c.handle(msg)
	}
}

func (c *Controller) handle(msg events.Message) {
	payload, err := msg.Payload()
	if err != nil {
		c.logger.Debug().Err(err).Str("event", string(msg.Event)).Msg("Ignoring unknown realtime event")
		return
	}
	if msg.Event == events.Connected {
		if p, ok := payload.(*events.ConnectedPayload); ok {
			c.mu.Lock()
			c.connectionID = p.ConnectionID
			c.mu.Unlock()
		}
		return
	}

	c.mu.Lock()
	subs := make([]Handlers, 0, len(c.subs))
	for _, h := range c.subs {
		subs = append(subs, h)
	}
	c.mu.Unlock()
	for _, h := range subs {
		h.dispatch(msg, payload)
	}
}

func (c *Controller) send(conn *websocket.Conn, m events.ClientMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(m); err != nil {
		c.logger.Debug().Err(err).Str("action", m.Action).Msg("Realtime send failed")
	}
}

package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/internal/realtime/backplane"
	pkgerrors "github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
)

// mockConnection records delivered events.
type mockConnection struct {
	id     string
	mu     sync.Mutex
	events []events.Event
	closed bool
	fail   error
}

func newMockConnection(id string) *mockConnection {
	return &mockConnection{id: id}
}

func (m *mockConnection) ID() string { return m.id }

func (m *mockConnection) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConnection) received() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

func (m *mockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func startHub(t *testing.T, opts ...Option) (*Hub, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	h := New(&logger, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

// flush waits until every command queued before it has been applied.
func flush(h *Hub) {
	h.ConnectionsOf("")
}

func statusEvent(serviceID string) events.Event {
	return events.Event{
		Kind: events.ServiceStatusChanged,
		Payload: events.ServiceStatusPayload{
			ServiceID: serviceID,
			Status:    "DEGRADED_PERFORMANCE",
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestHub_PublishReachesRoomMembers(t *testing.T) {
	h, _ := startHub(t)
	a := newMockConnection("a")
	h.Register(a)
	require.NoError(t, h.Join("a", "org-demo"))

	h.Publish("org-demo", statusEvent("svc1"))
	flush(h)

	got := a.received()
	require.Len(t, got, 1)
	assert.Equal(t, events.ServiceStatusChanged, got[0].Kind)
	assert.Equal(t, "org-demo", got[0].Room)
	assert.Equal(t, "svc1", got[0].Payload.(events.ServiceStatusPayload).ServiceID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestHub_LeftMemberReceivesNothing(t *testing.T) {
	h, _ := startHub(t)
	a, b := newMockConnection("a"), newMockConnection("b")
	h.Register(a)
	h.Register(b)
	require.NoError(t, h.Join("a", "org-demo"))
	require.NoError(t, h.Join("b", "org-demo"))
	h.Leave("b", "org-demo")

	h.Publish("org-demo", statusEvent("svc1"))
	flush(h)

	assert.Len(t, a.received(), 1)
	assert.Empty(t, b.received())
}

func TestHub_OtherRoomIsIsolated(t *testing.T) {
	h, _ := startHub(t)
	a := newMockConnection("a")
	h.Register(a)
	require.NoError(t, h.Join("a", "org-acme"))

	h.Publish("org-demo", statusEvent("svc1"))
	flush(h)

	assert.Empty(t, a.received())
}

func TestHub_PublishToEmptyRoom(t *testing.T) {
	h, _ := startHub(t)
	h.Publish("org-empty", statusEvent("svc1"))
	flush(h)

	s := h.Stats()
	assert.Equal(t, uint64(1), s.Published)
	assert.Equal(t, uint64(0), s.Delivered)
	assert.Equal(t, uint64(0), s.Failed)
}

func TestHub_JoinUnknownConnection(t *testing.T) {
	h, _ := startHub(t)
	err := h.Join("ghost", "org-demo")
	assert.True(t, pkgerrors.IsUnknownConnection(err))
	assert.Empty(t, h.ConnectionsOf("org-demo"))
}

func TestHub_FailingConnectionDoesNotStopDelivery(t *testing.T) {
	h, _ := startHub(t)
	a, b, c := newMockConnection("a"), newMockConnection("b"), newMockConnection("c")
	b.fail = errors.New("connection gone")
	for _, conn := range []*mockConnection{a, b, c} {
		h.Register(conn)
		require.NoError(t, h.Join(conn.ID(), "org-demo"))
	}

	h.Publish("org-demo", statusEvent("svc1"))
	flush(h)

	assert.Len(t, a.received(), 1)
	assert.Len(t, c.received(), 1)
	s := h.Stats()
	assert.Equal(t, uint64(2), s.Delivered)
	assert.Equal(t, uint64(1), s.Failed)
}

func TestHub_LateJoinerMissesEarlierEvent(t *testing.T) {
	h, _ := startHub(t)
	a, b := newMockConnection("a"), newMockConnection("b")
	h.Register(a)
	h.Register(b)
	require.NoError(t, h.Join("a", "org-demo"))

	h.Publish("org-demo", statusEvent("first"))
	require.NoError(t, h.Join("b", "org-demo"))
	h.Publish("org-demo", statusEvent("second"))
	flush(h)

	assert.Len(t, a.received(), 2)
	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Payload.(events.ServiceStatusPayload).ServiceID)
}

func TestHub_PerRoomOrder(t *testing.T) {
	h, _ := startHub(t)
	a := newMockConnection("a")
	h.Register(a)
	require.NoError(t, h.Join("a", "org-demo"))

	for i := range 50 {
		h.Publish("org-demo", statusEvent(fmt.Sprintf("svc%d", i)))
	}
	flush(h)

	got := a.received()
	require.Len(t, got, 50)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("svc%d", i), e.Payload.(events.ServiceStatusPayload).ServiceID)
	}
}

func TestHub_UnregisterLeavesAllRooms(t *testing.T) {
	h, _ := startHub(t)
	a := newMockConnection("a")
	h.Register(a)
	require.NoError(t, h.Join("a", "org-demo"))
	require.NoError(t, h.Join("a", "org-acme"))

	h.Unregister("a")
	assert.Empty(t, h.ConnectionsOf("org-demo"))
	assert.Empty(t, h.ConnectionsOf("org-acme"))

	h.Publish("org-demo", statusEvent("svc1"))
	flush(h)
	assert.Empty(t, a.received())
	assert.Equal(t, 0, h.Stats().Connections)
}

func TestHub_CommandsQueuedBeforeRun(t *testing.T) {
	logger := zerolog.Nop()
	h := New(&logger)
	a := newMockConnection("a")
	h.Register(a)
	h.Publish("org-demo", statusEvent("before"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	require.NoError(t, h.Join("a", "org-demo"))
	assert.Equal(t, []string{"a"}, h.ConnectionsOf("org-demo"))
	assert.Empty(t, a.received(), "event published before the join is not replayed")
}

func TestHub_MaxPerRoom(t *testing.T) {
	h, _ := startHub(t, WithMaxPerRoom(1))
	h.Register(newMockConnection("a"))
	h.Register(newMockConnection("b"))
	require.NoError(t, h.Join("a", "org-demo"))
	assert.ErrorIs(t, h.Join("b", "org-demo"), pkgerrors.ErrRoomFull)
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	h, cancel := startHub(t)
	a := newMockConnection("a")
	h.Register(a)
	require.NoError(t, h.Join("a", "org-demo"))

	cancel()
	assert.Eventually(t, a.isClosed, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.Join("a", "org-demo"), pkgerrors.ErrClosed)
	assert.Nil(t, h.ConnectionsOf("org-demo"))
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	logger := zerolog.Nop()
	h := New(&logger, WithQueueSize(2))
	for range 5 {
		h.Publish("org-demo", statusEvent("svc1"))
	}
	s := h.Stats()
	assert.Equal(t, uint64(5), s.Published)
	assert.Equal(t, uint64(3), s.Dropped)
}

func TestHub_StatsRoomSizes(t *testing.T) {
	h, _ := startHub(t)
	for _, id := range []string{"a", "b", "c"} {
		h.Register(newMockConnection(id))
	}
	require.NoError(t, h.Join("a", "org-demo"))
	require.NoError(t, h.Join("b", "org-demo"))
	require.NoError(t, h.Join("c", "org-acme"))

	s := h.Stats()
	assert.Equal(t, 3, s.Connections)
	assert.Equal(t, 2, s.Rooms)
	assert.Equal(t, map[string]int{"org-demo": 2, "org-acme": 1}, s.RoomSizes)
	assert.Equal(t, "none", s.Backplane)
	assert.False(t, s.StartedAt.IsZero())
}

func TestHub_SharedBackplaneCrossesInstances(t *testing.T) {
	bp := backplane.NewLocal()
	one, _ := startHub(t, WithBackplane(bp))
	two, _ := startHub(t, WithBackplane(bp))

	a, b := newMockConnection("a"), newMockConnection("b")
	one.Register(a)
	two.Register(b)
	require.NoError(t, one.Join("a", "org-demo"))
	require.NoError(t, two.Join("b", "org-demo"))
	require.Eventually(t, func() bool { return bp.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	one.Publish("org-demo", statusEvent("svc1"))

	assert.Eventually(t, func() bool { return len(a.received()) == 1 && len(b.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "local", one.Stats().Backplane)
}

// failingBackplane accepts subscriptions but rejects every publish.
type failingBackplane struct{}

func (failingBackplane) Publish(context.Context, string, events.Event) error {
	return errors.New("broker down")
}
func (failingBackplane) Subscribe(context.Context, backplane.Handler) error { return nil }
func (failingBackplane) Close() error                                      { return nil }

func TestHub_BackplaneFailureFallsBackToLocal(t *testing.T) {
	h, _ := startHub(t, WithBackplane(failingBackplane{}))
	a := newMockConnection("a")
	h.Register(a)
	require.NoError(t, h.Join("a", "org-demo"))

	h.Publish("org-demo", statusEvent("svc1"))
	assert.Eventually(t, func() bool { return len(a.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "custom", h.Stats().Backplane)
}

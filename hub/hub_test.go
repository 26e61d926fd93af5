package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/domain/domaintest"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return New(HubOptions{Clock: clock}), clock
}

func TestHub_RegisterTwiceKeepsLatest(t *testing.T) {
	h, _ := newTestHub(t)
	first := domaintest.NewClient("c1")
	second := domaintest.NewClient("c2")

	h.Register("42", first)
	h.Register("42", second)

	assert.Equal(t, 1, h.Count())
	got, ok := h.Lookup("42")
	require.True(t, ok)
	assert.Same(t, second, got)

	// The replaced connection is detached, not closed.
	assert.True(t, first.IsOpen())
	assert.Zero(t, first.CloseCount())
}

func TestHub_UnregisterStaleHandleKeepsNewBinding(t *testing.T) {
	h, _ := newTestHub(t)
	first := domaintest.NewClient("c1")
	second := domaintest.NewClient("c2")

	h.Register("42", first)
	h.Register("42", second)
	h.Unregister(first)

	got, ok := h.Lookup("42")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestHub_UnregisterRemovesByHandle(t *testing.T) {
	h, _ := newTestHub(t)
	a := domaintest.NewClient("a")
	b := domaintest.NewClient("b")
	h.Register("1", a)
	h.Register("2", b)

	h.Unregister(a)

	_, ok := h.Lookup("1")
	assert.False(t, ok)
	_, ok = h.Lookup("2")
	assert.True(t, ok)
	assert.Equal(t, 1, h.Count())
}

func TestHub_UnregisterUnknownIsNoop(t *testing.T) {
	h, _ := newTestHub(t)
	h.Register("1", domaintest.NewClient("a"))

	h.Unregister(domaintest.NewClient("never-registered"))

	assert.Equal(t, 1, h.Count())
}

func TestHub_LookupSkipsClosedConnection(t *testing.T) {
	h, _ := newTestHub(t)
	c := domaintest.NewClient("a")
	h.Register("42", c)

	c.SetOpen(false)

	_, ok := h.Lookup("42")
	assert.False(t, ok)
	_, ok = h.Lookup("missing")
	assert.False(t, ok)
}

func TestHub_LookupIsExactMatch(t *testing.T) {
	h, _ := newTestHub(t)
	h.Register("42", domaintest.NewClient("a"))

	for _, id := range []string{"42.0", " 42", "042"} {
		_, ok := h.Lookup(id)
		assert.False(t, ok, id)
	}
}

func TestHub_BroadcastReachesEveryOpenClient(t *testing.T) {
	h, _ := newTestHub(t)
	clients := make([]*domaintest.Client, 3)
	for i := range clients {
		clients[i] = domaintest.NewClient(fmt.Sprintf("c%d", i))
		h.Register(fmt.Sprint(i), clients[i])
	}
	closed := domaintest.NewClient("closed")
	h.Register("closed", closed)
	closed.SetOpen(false)

	err := h.Broadcast(context.Background(), domain.Envelope{Type: domain.EnvelopeTypeMessage, Data: "hi"})
	require.NoError(t, err)

	for _, c := range clients {
		frames := c.Decoded()
		require.Len(t, frames, 1)
		assert.Equal(t, "message", frames[0]["type"])
		assert.Equal(t, "hi", frames[0]["data"])
	}
	assert.Empty(t, closed.Sent())
	assert.Equal(t, int64(3), h.Stats().MessagesSent)
}

func TestHub_BroadcastIgnoresSendFailures(t *testing.T) {
	h, _ := newTestHub(t)
	bad := domaintest.NewClient("bad")
	bad.FailSends(errors.New("send buffer full"))
	good := domaintest.NewClient("good")
	h.Register("bad", bad)
	h.Register("good", good)

	require.NoError(t, h.Broadcast(context.Background(), map[string]string{"k": "v"}))

	assert.Len(t, good.Sent(), 1)
}

func TestHub_BroadcastMarshalError(t *testing.T) {
	h, _ := newTestHub(t)

	err := h.Broadcast(context.Background(), make(chan int))
	assert.Error(t, err)
}

func TestHub_SendTo(t *testing.T) {
	h, _ := newTestHub(t)
	target := domaintest.NewClient("t")
	other := domaintest.NewClient("o")
	h.Register("42", target)
	h.Register("7", other)

	require.NoError(t, h.SendTo(context.Background(), "42", map[string]string{"type": "notification"}))
	assert.Len(t, target.Sent(), 1)
	assert.Empty(t, other.Sent())

	err := h.SendTo(context.Background(), "99", map[string]string{})
	assert.ErrorIs(t, err, sensorlink.ErrClientNotFound)
}

func TestHub_ForEachStopsEarly(t *testing.T) {
	h, _ := newTestHub(t)
	for i := range 5 {
		h.Register(fmt.Sprint(i), domaintest.NewClient(fmt.Sprint(i)))
	}

	visited := 0
	h.ForEach(func(string, domain.Client) bool {
		visited++
		return visited < 2
	})

	assert.Equal(t, 2, visited)
}

func TestHub_ConnectedAtUsesClock(t *testing.T) {
	h, clock := newTestHub(t)

	h.Register("1", domaintest.NewClient("a"))
	first, ok := h.ConnectedAt("1")
	require.True(t, ok)

	clock.Advance(time.Minute)
	h.Register("1", domaintest.NewClient("b"))
	second, _ := h.ConnectedAt("1")

	assert.Equal(t, time.Minute, second.Sub(first))
	assert.Equal(t, 60.0, h.Stats().Uptime)
}

func TestHub_CloseClosesAll(t *testing.T) {
	h, _ := newTestHub(t)
	a := domaintest.NewClient("a")
	b := domaintest.NewClient("b")
	h.Register("1", a)
	h.Register("2", b)

	h.Close()

	assert.Zero(t, h.Count())
	assert.Equal(t, 1, a.CloseCount())
	assert.Equal(t, 1, b.CloseCount())
}

func TestHub_PublishesLifecycleEvents(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	var mu sync.Mutex
	var got []eventbus.EventType
	bus.SubscribeAll(func(e *eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	})
	h := New(HubOptions{Bus: bus})
	c := domaintest.NewClient("a")

	h.Register("1", c)
	h.Register("1", c)
	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, []eventbus.EventType{
		eventbus.EventClientRegistered,
		eventbus.EventClientReplaced,
		eventbus.EventClientUnregistered,
	}, got)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h, _ := newTestHub(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := domaintest.NewClient(fmt.Sprint(i))
			id := fmt.Sprint(i % 5)
			h.Register(id, c)
			_ = h.Broadcast(context.Background(), "x")
			h.Lookup(id)
			h.Unregister(c)
		}()
	}
	wg.Wait()

	// Each identity holds at most one entry at any time.
	assert.LessOrEqual(t, h.Count(), 5)
}

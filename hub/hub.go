package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/internal/eventbus"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/jonboulle/clockwork"
)

const sendTimeout = 5 * time.Second

type HubOptions struct {
	Logger *logging.Logger
	Clock  clockwork.Clock
	Bus    eventbus.Bus
}

type entry struct {
	client      domain.Client
	connectedAt time.Time
}

// Hub is the connection registry. It holds at most one entry per identity;
// all access goes through mu and no I/O happens while it is held.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]entry

	logger *logging.Logger
	clock  clockwork.Clock
	bus    eventbus.Bus

	messagesSent     int64
	messagesReceived int64
	startTime        time.Time
}

var _ domain.Hub = (*Hub)(nil)

func New(opts HubOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}

	return &Hub{
		clients:   make(map[string]entry),
		logger:    opts.Logger,
		clock:     opts.Clock,
		bus:       opts.Bus,
		startTime: opts.Clock.Now(),
	}
}

// Register binds identity to client. A previous binding is dropped without
// closing its connection; that connection stays open but unreachable.
func (h *Hub) Register(identity string, client domain.Client) {
	h.mu.Lock()
	prev, replaced := h.clients[identity]
	h.clients[identity] = entry{client: client, connectedAt: h.clock.Now()}
	total := len(h.clients)
	h.mu.Unlock()

	if replaced {
		h.logger.Warn("identity re-registered, previous connection detached",
			"identity", identity,
			"client_id", client.ID(),
			"previous_client_id", prev.client.ID(),
		)
		h.bus.Publish(eventbus.NewEvent(eventbus.EventClientReplaced, "hub", identity))
		return
	}

	h.logger.Info("client registered",
		"identity", identity,
		"client_id", client.ID(),
		"total_clients", total,
	)
	h.bus.Publish(eventbus.NewEvent(eventbus.EventClientRegistered, "hub", identity))
}

// Unregister removes the entry bound to client. It does nothing when the
// handshake never completed or the identity has since been re-bound.
func (h *Hub) Unregister(client domain.Client) {
	h.mu.Lock()
	identity, found := "", false
	for id, e := range h.clients {
		if e.client == client {
			identity, found = id, true
			delete(h.clients, id)
			break
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !found {
		return
	}

	h.logger.Info("client unregistered",
		"identity", identity,
		"client_id", client.ID(),
		"total_clients", total,
	)
	h.bus.Publish(eventbus.NewEvent(eventbus.EventClientUnregistered, "hub", identity))
}

func (h *Hub) Lookup(identity string) (domain.Client, bool) {
	h.mu.RLock()
	e, ok := h.clients[identity]
	h.mu.RUnlock()

	if !ok || !e.client.IsOpen() {
		return nil, false
	}
	return e.client, true
}

// ConnectedAt returns when identity's current connection was registered.
func (h *Hub) ConnectedAt(identity string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.clients[identity]
	return e.connectedAt, ok
}

func (h *Hub) ForEach(fn func(identity string, client domain.Client) bool) {
	for identity, e := range h.snapshot() {
		if !fn(identity, e.client) {
			return
		}
	}
}

// Broadcast encodes v once and writes it to every open client. Closed
// clients are skipped; send failures are logged and not returned.
func (h *Hub) Broadcast(ctx context.Context, v any) error {
	message, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}
	atomic.AddInt64(&h.messagesReceived, 1)

	var successCount, errorCount int
	h.ForEach(func(identity string, client domain.Client) bool {
		if !client.IsOpen() {
			return true
		}

		if err := h.send(ctx, client, message); err != nil {
			errorCount++
			h.logger.Error("failed to send to client",
				"identity", identity,
				"client_id", client.ID(),
				"error", err,
			)
			return true
		}
		successCount++
		return true
	})

	h.logger.Debug("broadcast complete",
		"success_count", successCount,
		"error_count", errorCount,
	)
	return nil
}

// SendTo writes v to the open client bound to identity.
func (h *Hub) SendTo(ctx context.Context, identity string, v any) error {
	client, ok := h.Lookup(identity)
	if !ok {
		return sensorlink.ErrClientNotFound
	}

	message, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	atomic.AddInt64(&h.messagesReceived, 1)

	return h.send(ctx, client, message)
}

func (h *Hub) send(ctx context.Context, client domain.Client, message []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := client.Send(ctx, message); err != nil {
		return err
	}
	atomic.AddInt64(&h.messagesSent, 1)
	return nil
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stats() domain.HubStats {
	return domain.HubStats{
		ConnectedClients: h.Count(),
		MessagesSent:     atomic.LoadInt64(&h.messagesSent),
		MessagesReceived: atomic.LoadInt64(&h.messagesReceived),
		Uptime:           h.clock.Since(h.startTime).Seconds(),
	}
}

// Close closes every registered connection and empties the registry.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]entry)
	h.mu.Unlock()

	for identity, e := range clients {
		if err := e.client.Close(); err != nil {
			h.logger.Debug("error closing client", "identity", identity, "error", err)
		}
	}

	h.logger.Info("hub stopped", "closed_clients", len(clients))
}

func (h *Hub) snapshot() map[string]entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]entry, len(h.clients))
	for id, e := range h.clients {
		out[id] = e
	}
	return out
}

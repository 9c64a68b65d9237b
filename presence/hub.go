// Package presence tracks the agents connected to this shard over
// websockets and publishes their lifecycle and chat traffic to subscribers.
package presence

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/eventqueue"
	"github.com/linesmerrill/region-chat-api/models"
)

// EventKind identifies what happened on a connection
type EventKind int

// Presence event kinds
const (
	EventConnected EventKind = iota
	EventDisconnected
	EventInstantMessage
)

// Event is published to every subscriber of a Hub
type Event struct {
	Kind    EventKind
	Conn    models.Connection
	Message models.RoutedMessage
}

// Handler receives presence events. Handlers run on the connection's
// goroutine and must not block.
type Handler func(Event)

// Handle identifies a subscription
type Handle uint64

// CredentialIssuer hands out the secret remote shards use to enqueue for an agent
type CredentialIssuer interface {
	Issue(agentID uuid.UUID, regionHandle uint64) (uuid.UUID, error)
	Revoke(agentID uuid.UUID, regionHandle uint64)
}

// Hub is the registry of local connections
type Hub struct {
	queue *eventqueue.Queue
	creds CredentialIssuer

	mu      sync.RWMutex
	clients map[uuid.UUID][]*Client

	subMu    sync.RWMutex
	handlers map[Handle]Handler
	next     Handle
}

// NewHub creates a hub draining events from queue. creds may be nil.
func NewHub(queue *eventqueue.Queue, creds CredentialIssuer) *Hub {
	h := &Hub{
		queue:    queue,
		creds:    creds,
		clients:  make(map[uuid.UUID][]*Client),
		handlers: make(map[Handle]Handler),
	}
	queue.SetNotifier(h.Notify)
	return h
}

// Subscribe registers fn for every future presence event
func (h *Hub) Subscribe(fn Handler) Handle {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.next++
	h.handlers[h.next] = fn
	return h.next
}

// Unsubscribe detaches a handler. Unknown handles are ignored.
func (h *Hub) Unsubscribe(handle Handle) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	delete(h.handlers, handle)
}

// Publish delivers ev to every subscriber
func (h *Hub) Publish(ev Event) {
	h.subMu.RLock()
	handlers := make([]Handler, 0, len(h.handlers))
	for _, fn := range h.handlers {
		handlers = append(handlers, fn)
	}
	h.subMu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// FindLocalConnection returns the agent's connection on this shard,
// preferring a root connection over a child one
func (h *Hub) FindLocalConnection(agentID uuid.UUID) (models.Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var found *Client
	for _, c := range h.clients[agentID] {
		if !c.info.IsChild {
			return c.info, true
		}
		if found == nil {
			found = c
		}
	}
	if found == nil {
		return models.Connection{}, false
	}
	return found.info, true
}

// Connections returns a snapshot of every local connection
func (h *Hub) Connections() []models.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []models.Connection
	for _, list := range h.clients {
		for _, c := range list {
			out = append(out, c.info)
		}
	}
	return out
}

// Notify wakes the connections that drain the given queue
func (h *Hub) Notify(key models.QueueKey) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients[key.AgentID] {
		if c.info.RegionHandle == key.RegionHandle {
			c.signal()
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.info.AgentID] = append(h.clients[c.info.AgentID], c)
	h.mu.Unlock()

	zap.S().Infow("agent connected",
		"agent", c.info.AgentID,
		"region", c.info.RegionHandle,
		"child", c.info.IsChild)
	h.Publish(Event{Kind: EventConnected, Conn: c.info})
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	list := h.clients[c.info.AgentID]
	for i, existing := range list {
		if existing == c {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.clients, c.info.AgentID)
	} else {
		h.clients[c.info.AgentID] = list
	}
	h.mu.Unlock()

	zap.S().Infow("agent disconnected",
		"agent", c.info.AgentID,
		"region", c.info.RegionHandle)
	h.Publish(Event{Kind: EventDisconnected, Conn: c.info})
}

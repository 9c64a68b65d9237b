// Package groupchat coordinates group chat sessions between the agents
// connected to this shard and the sessions' members on other shards.
package groupchat

// go generate: mockery --name GroupDirectory
// go generate: mockery --name Presence
// go generate: mockery --name DeliveryQueue
// go generate: mockery --name Forwarder

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/databases"
	"github.com/linesmerrill/region-chat-api/models"
	"github.com/linesmerrill/region-chat-api/presence"
)

// GroupDirectory is the authoritative source of group names and membership
type GroupDirectory interface {
	GetGroupRecord(ctx context.Context, groupID uuid.UUID) (*models.GroupRecord, error)
	GetGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// Presence answers whether an agent is connected to this shard
type Presence interface {
	FindLocalConnection(agentID uuid.UUID) (models.Connection, bool)
}

// DeliveryQueue pushes events to a locally connected agent
type DeliveryQueue interface {
	ChatterBoxSessionAgentListUpdates(sessionID uuid.UUID, updates []models.AgentUpdate, toAgent uuid.UUID, transition string, regionHandle uint64) bool
	ChatterboxInvitation(inv models.Invitation, regionHandle uint64) bool
	ChatterBoxSessionStartReply(sessionName string, sessionID, agentID uuid.UUID, regionHandle uint64) bool
	SendInstantMessage(msg models.RoutedMessage, toAgent uuid.UUID, regionHandle uint64) bool
}

// Forwarder hands a message to other shards for the given recipients.
// Forward must not block.
type Forwarder interface {
	Forward(msg models.RoutedMessage, recipients []uuid.UUID)
}

// Bus is the presence event source the coordinator listens to
type Bus interface {
	Subscribe(fn presence.Handler) presence.Handle
	Unsubscribe(handle presence.Handle)
}

// Options configures a Coordinator
type Options struct {
	Store     databases.ChatSessionDatabase
	Directory GroupDirectory
	Presence  Presence
	Queue     DeliveryQueue
	Forwarder Forwarder
	Enabled   bool
	// Debug dumps every non-agent message at debug level
	Debug bool
}

// Coordinator owns the session lifecycle on this shard
type Coordinator struct {
	store     databases.ChatSessionDatabase
	directory GroupDirectory
	presence  Presence
	queue     DeliveryQueue
	forwarder Forwarder
	enabled   bool
	debug     bool
	now       func() time.Time

	mu      sync.Mutex
	bus     Bus
	handles []presence.Handle
}

// New builds a coordinator. A coordinator that is switched off, or is
// missing a collaborator, is returned disabled and every operation on it
// is a no-op.
func New(o Options) *Coordinator {
	c := &Coordinator{
		store:     o.Store,
		directory: o.Directory,
		presence:  o.Presence,
		queue:     o.Queue,
		forwarder: o.Forwarder,
		enabled:   o.Enabled,
		debug:     o.Debug,
		now:       time.Now,
	}
	if !o.Enabled {
		zap.S().Infow("group messaging disabled by configuration")
		return c
	}
	if o.Store == nil || o.Directory == nil || o.Forwarder == nil || o.Presence == nil || o.Queue == nil {
		zap.S().Errorw("group messaging is missing a collaborator, disabling",
			"store", o.Store != nil,
			"directory", o.Directory != nil,
			"forwarder", o.Forwarder != nil,
			"presence", o.Presence != nil,
			"queue", o.Queue != nil)
		c.enabled = false
	}
	return c
}

// Enabled reports whether the coordinator is processing messages
func (c *Coordinator) Enabled() bool {
	return c.enabled
}

// Attach subscribes the coordinator to local client traffic on bus
func (c *Coordinator) Attach(bus Bus) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus = bus
	c.handles = append(c.handles, bus.Subscribe(c.onPresenceEvent))
}

// Close detaches every subscription made by Attach
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus == nil {
		return
	}
	for _, h := range c.handles {
		c.bus.Unsubscribe(h)
	}
	c.handles = nil
	c.bus = nil
}

func (c *Coordinator) onPresenceEvent(ev presence.Event) {
	switch ev.Kind {
	case presence.EventInstantMessage:
		c.HandleClientMessage(ev.Conn, ev.Message)
	case presence.EventConnected, presence.EventDisconnected:
		zap.S().Debugw("presence changed", "agent", ev.Conn.AgentID, "kind", ev.Kind)
	}
}

// Roster returns a snapshot of the session, or false if it does not exist here
func (c *Coordinator) Roster(sessionID uuid.UUID) (*models.ChatSession, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.store.GetSession(sessionID)
}

// logMessage dumps a message at debug level. Direct agent messages are
// private and never logged.
func (c *Coordinator) logMessage(msg models.RoutedMessage) {
	if !c.debug || msg.Dialog == models.DialogMessageFromAgent {
		return
	}
	zap.S().Debugw("group message",
		"fromGroup", msg.FromGroup,
		"dialog", msg.Dialog.String(),
		"forwarded", msg.Forwarded,
		"fromAgentID", msg.FromAgentID,
		"fromAgentName", msg.FromAgentName,
		"sessionID", msg.SessionID,
		"message", msg.Message,
		"offline", msg.Offline,
		"toAgentID", msg.ToAgentID,
		"binaryBucket", hex.EncodeToString(msg.BinaryBucket))
}

// sessionName looks up the display name of a group, empty when unknown
func (c *Coordinator) sessionName(ctx context.Context, groupID uuid.UUID) string {
	rec, err := c.directory.GetGroupRecord(ctx, groupID)
	if err != nil || rec == nil {
		zap.S().Warnw("failed to look up group", "group", groupID, "error", err)
		return ""
	}
	return rec.Name
}

// ensureMember adds member to the session, creating the session when it
// does not exist on this shard yet. It reports whether a record was added.
func (c *Coordinator) ensureMember(ctx context.Context, sessionID uuid.UUID, member models.ChatSessionMember) (bool, error) {
	var name string
	for attempt := 0; attempt < 3; attempt++ {
		added, err := c.store.AddMember(member, sessionID)
		if err == nil {
			return added, nil
		}
		if name == "" {
			name = c.sessionName(ctx, sessionID)
		}
		err = c.store.CreateSession(&models.ChatSession{
			SessionID: sessionID,
			Name:      name,
			Members:   []models.ChatSessionMember{member},
		})
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, databases.ErrDuplicateSession) {
			return false, err
		}
	}
	return false, databases.ErrSessionNotFound
}

// invite marks the agent as invited: a pending member record is added
// unless one already exists
func (c *Coordinator) invite(ctx context.Context, agentID, sessionID uuid.UUID) {
	if _, err := c.ensureMember(ctx, sessionID, models.ChatSessionMember{AvatarKey: agentID}); err != nil {
		zap.S().Errorw("failed to invite agent to session", "agent", agentID, "session", sessionID, "error", err)
	}
}

package groupchat

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/metrics"
	"github.com/linesmerrill/region-chat-api/models"
)

// HandleClientMessage processes an instant message typed by a locally
// connected agent
func (c *Coordinator) HandleClientMessage(conn models.Connection, msg models.RoutedMessage) {
	if !c.enabled {
		return
	}
	c.logMessage(msg)
	msg.FromAgentID = conn.AgentID

	switch msg.Dialog {
	case models.DialogSessionGroupStart:
		c.StartSession(context.Background(), conn, msg.SessionID, "")
	case models.DialogSessionSend:
		if msg.Message == "" {
			return
		}
		c.store.ClearDrop(conn.AgentID, msg.SessionID)
		c.confirmSender(context.Background(), conn.AgentID, msg.SessionID)
		c.RouteGroupMessage(msg)
	case models.DialogSessionDrop:
		c.DropMemberFromSession(msg, !msg.Forwarded)
	}
}

// confirmSender records that an agent typing into a session takes part in it
func (c *Coordinator) confirmSender(ctx context.Context, agentID, sessionID uuid.UUID) {
	added, err := c.ensureMember(ctx, sessionID, models.ChatSessionMember{AvatarKey: agentID, HasBeenAdded: true})
	if err != nil {
		zap.S().Errorw("failed to add sender to session", "agent", agentID, "session", sessionID, "error", err)
		return
	}
	if added {
		return
	}
	_ = c.store.UpdateSession(sessionID, func(s *models.ChatSession) error {
		if m := s.Member(agentID); m != nil {
			m.HasBeenAdded = true
		}
		return nil
	})
}

// RouteGroupMessage fans a message out to every session member. Confirmed
// members connected here get the message, pending members connected here
// get an invitation carrying it, and everyone else is handed to the
// forwarder in a single call.
func (c *Coordinator) RouteGroupMessage(msg models.RoutedMessage) {
	if !c.enabled {
		return
	}
	msg.FromGroup = true
	msg.Timestamp = uint32(c.now().Unix())

	session, ok := c.store.GetSession(msg.SessionID)
	if !ok {
		zap.S().Warnw("message for unknown session", "session", msg.SessionID, "from", msg.FromAgentID)
		return
	}

	var recipients []uuid.UUID
	for _, m := range session.Members {
		conn, ok := c.presence.FindLocalConnection(m.AvatarKey)
		if !ok {
			// the member's own shard delivers, or invites a pending member
			recipients = append(recipients, m.AvatarKey)
			continue
		}
		if m.HasBeenAdded {
			out := msg
			out.ToAgentID = m.AvatarKey
			c.queue.SendInstantMessage(out, m.AvatarKey, conn.RegionHandle)
			metrics.MessagesRouted.WithLabelValues("local").Inc()
			continue
		}
		c.queue.ChatterboxInvitation(invitationFor(msg, session.Name, m.AvatarKey), conn.RegionHandle)
		metrics.MessagesRouted.WithLabelValues("invitation").Inc()
	}

	if len(recipients) > 0 {
		c.forwarder.Forward(msg, recipients)
		metrics.MessagesRouted.WithLabelValues("remote").Add(float64(len(recipients)))
	}
}

func invitationFor(msg models.RoutedMessage, sessionName string, to uuid.UUID) models.Invitation {
	return models.Invitation{
		SessionID:      msg.SessionID,
		SessionName:    sessionName,
		FromAgentID:    msg.FromAgentID,
		FromAgentName:  msg.FromAgentName,
		ToAgentID:      to,
		Message:        msg.Message,
		Dialog:         msg.Dialog,
		Timestamp:      msg.Timestamp,
		Offline:        msg.Offline,
		ParentEstateID: msg.ParentEstateID,
		Position:       msg.Position,
		FromGroup:      msg.FromGroup,
		BinaryBucket:   []byte(sessionName),
	}
}

// DeliverForwarded accepts a message another shard forwarded to recipients.
// Session wide events are applied once, and only when one of the
// recipients is connected here. Messages are processed once per local
// recipient.
func (c *Coordinator) DeliverForwarded(msg models.RoutedMessage, recipients []uuid.UUID) {
	if !c.enabled {
		return
	}
	if msg.Dialog == models.DialogSessionSend {
		for _, id := range recipients {
			if _, ok := c.presence.FindLocalConnection(id); !ok {
				continue
			}
			m := msg
			m.ToAgentID = id
			c.ProcessIncomingGroupEvent(m)
		}
		return
	}
	for _, id := range recipients {
		if _, ok := c.presence.FindLocalConnection(id); ok {
			c.ProcessIncomingGroupEvent(msg)
			return
		}
	}
}

// ProcessIncomingGroupEvent applies a session event that arrived from
// another shard
func (c *Coordinator) ProcessIncomingGroupEvent(msg models.RoutedMessage) {
	if !c.enabled {
		return
	}
	c.logMessage(msg)
	metrics.InboundEvents.WithLabelValues(msg.Dialog.String()).Inc()
	ctx := context.Background()

	switch msg.Dialog {
	case models.DialogSessionAdd:
		c.store.ClearDrop(msg.FromAgentID, msg.SessionID)
		c.invite(ctx, msg.FromAgentID, msg.SessionID)
	case models.DialogSessionDrop:
		c.DropMemberFromSession(msg, !msg.Forwarded)
	case models.DialogSessionSend:
		c.receiveSessionSend(ctx, msg)
	default:
		zap.S().Warnw("unable to process group message", "dialog", msg.Dialog.String(), "session", msg.SessionID)
	}
}

// hasDropped reports whether the sender's drop tombstone still applies to
// msg. A message stamped after the drop supersedes it.
func (c *Coordinator) hasDropped(msg models.RoutedMessage) bool {
	at, ok := c.store.DroppedAt(msg.FromAgentID, msg.SessionID)
	if !ok {
		return false
	}
	if int64(msg.Timestamp) > at.Unix() {
		c.store.ClearDrop(msg.FromAgentID, msg.SessionID)
		return false
	}
	return true
}

func (c *Coordinator) receiveSessionSend(ctx context.Context, msg models.RoutedMessage) {
	if c.hasDropped(msg) {
		zap.S().Debugw("ignoring message from agent who left the session",
			"session", msg.SessionID,
			"from", msg.FromAgentID)
		return
	}

	if !c.store.HasAgentBeenInvited(msg.FromAgentID, msg.SessionID) {
		c.invite(ctx, msg.FromAgentID, msg.SessionID)

		conn, ok := c.presence.FindLocalConnection(msg.ToAgentID)
		if !ok {
			return
		}
		name := c.sessionName(ctx, msg.SessionID)
		if name == "" {
			return
		}
		c.invite(ctx, msg.ToAgentID, msg.SessionID)
		c.queue.ChatterboxInvitation(invitationFor(msg, name, msg.ToAgentID), conn.RegionHandle)
		c.queue.ChatterBoxSessionAgentListUpdates(msg.SessionID,
			[]models.AgentUpdate{{AgentID: msg.FromAgentID, Transition: models.TransitionEnter}},
			msg.ToAgentID, models.TransitionEnter, conn.RegionHandle)
		metrics.MessagesRouted.WithLabelValues("invitation").Inc()
		return
	}

	conn, ok := c.presence.FindLocalConnection(msg.ToAgentID)
	if !ok {
		zap.S().Warnw("received a session message for an agent that is not here",
			"to", msg.ToAgentID,
			"session", msg.SessionID)
		return
	}
	c.queue.SendInstantMessage(msg, msg.ToAgentID, conn.RegionHandle)
	metrics.MessagesRouted.WithLabelValues("local").Inc()
}

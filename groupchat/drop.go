package groupchat

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/models"
)

// DropMemberFromSession removes the sender of msg from its session. The
// remaining members connected here are told the agent left. When forwardOn
// is set the others are reached through the forwarder with the message
// marked as forwarded, so it is never forwarded again.
func (c *Coordinator) DropMemberFromSession(msg models.RoutedMessage, forwardOn bool) {
	if !c.enabled {
		return
	}
	// stamped with the origin shard's clock, and carried on the forward
	if msg.Timestamp == 0 {
		msg.Timestamp = uint32(c.now().Unix())
	}
	c.store.RecordDrop(msg.FromAgentID, msg.SessionID, time.Unix(int64(msg.Timestamp), 0))

	var (
		left      models.ChatSessionMember
		removed   bool
		remaining []models.ChatSessionMember
	)
	err := c.store.UpdateSession(msg.SessionID, func(s *models.ChatSession) error {
		left, removed = s.RemoveMember(msg.FromAgentID)
		if removed {
			remaining = append(remaining, s.Members...)
		}
		return nil
	})
	if err != nil || !removed {
		return
	}
	if len(remaining) == 0 {
		zap.S().Infow("session closed", "session", msg.SessionID)
		return
	}

	leave := []models.AgentUpdate{models.UpdateFor(left, models.TransitionLeave)}
	var forward []uuid.UUID
	for _, m := range remaining {
		conn, ok := c.presence.FindLocalConnection(m.AvatarKey)
		if !ok {
			forward = append(forward, m.AvatarKey)
			continue
		}
		c.queue.ChatterBoxSessionAgentListUpdates(msg.SessionID, leave, m.AvatarKey, models.TransitionLeave, conn.RegionHandle)
	}

	if forwardOn && len(forward) > 0 {
		out := msg
		out.Dialog = models.DialogSessionDrop
		out.Forwarded = true
		c.forwarder.Forward(out, forward)
	}
}

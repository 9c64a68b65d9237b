package groupchat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/databases"
	"github.com/linesmerrill/region-chat-api/metrics"
	"github.com/linesmerrill/region-chat-api/models"
)

// Chat session request methods
const (
	MethodAcceptInvitation = "accept invitation"
	MethodMuteUpdate       = "mute update"
)

// ResultAccepted is returned for a successful accept invitation request
const ResultAccepted = "Accepted"

// StartSession opens the group's session for requester. Every other group
// member is added as a pending invitee. Only the requester is notified.
// An empty groupName is looked up in the directory.
func (c *Coordinator) StartSession(ctx context.Context, requester models.Connection, groupID uuid.UUID, groupName string) bool {
	if !c.enabled {
		return false
	}
	var (
		members []uuid.UUID
		listed  bool
	)
	if groupName == "" {
		rec, err := c.directory.GetGroupRecord(ctx, groupID)
		if err != nil || rec == nil || rec.Name == "" {
			zap.S().Warnw("failed to look up group", "group", groupID, "error", err)
			return false
		}
		groupName = rec.Name
		members, listed = memberIDs(groupID, rec), true
	}

	self := models.ChatSessionMember{
		AvatarKey:    requester.AgentID,
		HasBeenAdded: true,
		IsModerator:  true,
		CanVoiceChat: true,
	}
	c.store.ClearDrop(requester.AgentID, groupID)
	if err := c.joinAsModerator(groupID, groupName, self); err != nil {
		zap.S().Errorw("failed to start session",
			"group", groupID,
			"agent", requester.AgentID,
			"error", err)
		return false
	}

	if !listed {
		var err error
		members, err = c.directory.GetGroupMembers(ctx, groupID)
		if err != nil {
			zap.S().Warnw("failed to list group members", "group", groupID, "error", err)
		}
	}
	for _, id := range members {
		if id == requester.AgentID {
			continue
		}
		if _, err := c.store.AddMember(models.ChatSessionMember{AvatarKey: id}, groupID); err != nil {
			zap.S().Warnw("failed to add pending member", "group", groupID, "agent", id, "error", err)
		}
	}

	c.queue.ChatterBoxSessionStartReply(groupName, groupID, requester.AgentID, requester.RegionHandle)
	c.queue.ChatterBoxSessionAgentListUpdates(groupID,
		[]models.AgentUpdate{models.UpdateFor(self, models.TransitionEnter)},
		requester.AgentID, models.TransitionEnter, requester.RegionHandle)
	metrics.SessionsStarted.Inc()

	zap.S().Infow("session started",
		"session", groupID,
		"name", groupName,
		"agent", requester.AgentID,
		"invited", len(members))
	return true
}

// joinAsModerator creates the session holding self, or confirms self in an
// existing one
func (c *Coordinator) joinAsModerator(groupID uuid.UUID, name string, self models.ChatSessionMember) error {
	for attempt := 0; attempt < 3; attempt++ {
		err := c.store.CreateSession(&models.ChatSession{
			SessionID: groupID,
			Name:      name,
			Members:   []models.ChatSessionMember{self},
		})
		if !errors.Is(err, databases.ErrDuplicateSession) {
			return err
		}
		err = c.store.UpdateSession(groupID, func(s *models.ChatSession) error {
			if m := s.Member(self.AvatarKey); m != nil {
				*m = self
				return nil
			}
			s.Members = append(s.Members, self)
			return nil
		})
		if !errors.Is(err, databases.ErrSessionNotFound) {
			return err
		}
	}
	return databases.ErrSessionNotFound
}

// HandleChatRequest answers a chat session request from a local agent and
// returns the response body. Unknown sessions, members and methods yield an
// empty result.
func (c *Coordinator) HandleChatRequest(requester models.Connection, sessionID uuid.UUID, method string, params map[string]interface{}) string {
	if !c.enabled {
		return ""
	}
	switch method {
	case MethodAcceptInvitation:
		return c.acceptInvitation(requester, sessionID)
	case MethodMuteUpdate:
		return c.muteUpdate(requester, sessionID, params)
	}
	zap.S().Warnw("unknown chat session request method",
		"method", method,
		"session", sessionID,
		"agent", requester.AgentID)
	return ""
}

func (c *Coordinator) acceptInvitation(requester models.Connection, sessionID uuid.UUID) string {
	var (
		accepted bool
		us       models.AgentUpdate
		notUs    []models.AgentUpdate
		others   []uuid.UUID
	)
	err := c.store.UpdateSession(sessionID, func(s *models.ChatSession) error {
		m := s.Member(requester.AgentID)
		if m == nil || m.HasBeenAdded {
			return nil
		}
		m.HasBeenAdded = true
		accepted = true
		for _, sm := range s.Members {
			if sm.AvatarKey == requester.AgentID {
				us = models.UpdateFor(sm, models.TransitionEnter)
				continue
			}
			// pending invitees have not joined and are left out of the roster
			if sm.HasBeenAdded {
				notUs = append(notUs, models.UpdateFor(sm, models.TransitionEnter))
				others = append(others, sm.AvatarKey)
			}
		}
		return nil
	})
	if err != nil || !accepted {
		zap.S().Debugw("accept invitation rejected",
			"session", sessionID,
			"agent", requester.AgentID,
			"error", err)
		return ""
	}
	c.store.ClearDrop(requester.AgentID, sessionID)

	c.queue.ChatterBoxSessionAgentListUpdates(sessionID, notUs, requester.AgentID, models.TransitionEnter, requester.RegionHandle)
	for _, id := range others {
		conn, ok := c.presence.FindLocalConnection(id)
		if !ok {
			continue
		}
		c.queue.ChatterBoxSessionAgentListUpdates(sessionID, []models.AgentUpdate{us}, id, models.TransitionEnter, conn.RegionHandle)
	}
	return ResultAccepted
}

func (c *Coordinator) muteUpdate(requester models.Connection, sessionID uuid.UUID, params map[string]interface{}) string {
	m, ok := c.store.FindMember(sessionID, requester.AgentID)
	if !ok || !m.IsModerator {
		return ""
	}
	zap.S().Infow("mute update is not supported",
		"session", sessionID,
		"agent", requester.AgentID,
		"params", params)
	return ""
}

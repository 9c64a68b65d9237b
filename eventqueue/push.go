package eventqueue

import (
	"github.com/google/uuid"

	"github.com/linesmerrill/region-chat-api/models"
)

// ChatterBoxSessionAgentListUpdates pushes a roster update to toAgent
func (q *Queue) ChatterBoxSessionAgentListUpdates(sessionID uuid.UUID, updates []models.AgentUpdate, toAgent uuid.UUID, transition string, regionHandle uint64) bool {
	agentUpdates := make(map[string]interface{}, len(updates))
	transitions := make(map[string]interface{}, len(updates))
	for _, u := range updates {
		t := u.Transition
		if t == "" {
			t = transition
		}
		agentUpdates[u.AgentID.String()] = map[string]interface{}{
			"info": map[string]interface{}{
				"can_voice_chat": u.CanVoiceChat,
				"is_moderator":   u.IsModerator,
				"mutes": map[string]interface{}{
					"text":  u.MuteText,
					"voice": u.MuteVoice,
				},
			},
			"transition": t,
		}
		transitions[u.AgentID.String()] = t
	}
	return q.Enqueue(models.Event{
		Message: models.EventAgentListUpdates,
		Body: map[string]interface{}{
			"session_id":    sessionID,
			"agent_updates": agentUpdates,
			"updates":       transitions,
		},
	}, toAgent, regionHandle)
}

// ChatterboxInvitation pushes a combined session invitation and first message
func (q *Queue) ChatterboxInvitation(inv models.Invitation, regionHandle uint64) bool {
	return q.Enqueue(models.Event{
		Message: models.EventInvitation,
		Body: map[string]interface{}{
			"session_id":   inv.SessionID,
			"from_id":      inv.FromAgentID,
			"from_name":    inv.FromAgentName,
			"session_name": inv.SessionName,
			"instantmessage": map[string]interface{}{
				"message_params": map[string]interface{}{
					"from_id":          inv.FromAgentID,
					"from_name":        inv.FromAgentName,
					"to_id":            inv.ToAgentID,
					"id":               inv.SessionID,
					"message":          inv.Message,
					"type":             int(inv.Dialog),
					"timestamp":        inv.Timestamp,
					"offline":          inv.Offline,
					"parent_estate_id": inv.ParentEstateID,
					"position":         positionArray(inv.Position),
					"from_group":       inv.FromGroup,
					"ttl":              1,
					"data": map[string]interface{}{
						"binary_bucket": inv.BinaryBucket,
					},
				},
				"agent_params": map[string]interface{}{
					"agent_id": inv.ToAgentID,
				},
			},
		},
	}, inv.ToAgentID, regionHandle)
}

// ChatterBoxSessionStartReply tells agentID its session is open
func (q *Queue) ChatterBoxSessionStartReply(sessionName string, sessionID, agentID uuid.UUID, regionHandle uint64) bool {
	return q.Enqueue(models.Event{
		Message: models.EventSessionStartReply,
		Body: map[string]interface{}{
			"session_id":      sessionID,
			"temp_session_id": sessionID,
			"success":         true,
			"session_info": map[string]interface{}{
				"session_name": sessionName,
				"type":         0,
				"moderated_mode": map[string]interface{}{
					"voice": false,
				},
			},
		},
	}, agentID, regionHandle)
}

// SendInstantMessage pushes a chat message directly to toAgent
func (q *Queue) SendInstantMessage(msg models.RoutedMessage, toAgent uuid.UUID, regionHandle uint64) bool {
	return q.Enqueue(models.Event{
		Message: models.EventInstantMessage,
		Body: map[string]interface{}{
			"from_id":       msg.FromAgentID,
			"from_name":     msg.FromAgentName,
			"to_id":         toAgent,
			"session_id":    msg.SessionID,
			"dialog":        msg.DialogCode(),
			"message":       msg.Message,
			"timestamp":     msg.Timestamp,
			"offline":       msg.Offline,
			"from_group":    msg.FromGroup,
			"binary_bucket": msg.BinaryBucket,
			"position":      positionArray(msg.Position),
		},
	}, toAgent, regionHandle)
}

func positionArray(p models.Vector3) []interface{} {
	return []interface{}{float64(p.X), float64(p.Y), float64(p.Z)}
}

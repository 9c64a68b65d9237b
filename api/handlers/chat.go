package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/api"
	"github.com/linesmerrill/region-chat-api/config"
	"github.com/linesmerrill/region-chat-api/eventqueue"
	"github.com/linesmerrill/region-chat-api/groupchat"
	"github.com/linesmerrill/region-chat-api/models"
)

var (
	errNoAgent            = errors.New("no authenticated agent")
	errMessagingDisabled  = errors.New("group messaging is disabled")
	errNotSessionMember   = errors.New("agent is not a member of the session")
	errEmptyMessage       = errors.New("message is empty")
	errSessionUnavailable = errors.New("session could not be started")
)

// Chat exposes the group chat coordinator to agents over REST
type Chat struct {
	Coordinator *groupchat.Coordinator
	Queue       *eventqueue.Queue
}

type startSessionRequest struct {
	GroupID   uuid.UUID `json:"groupID"`
	GroupName string    `json:"groupName"`
}

type startSessionResponse struct {
	Success   bool      `json:"success"`
	SessionID uuid.UUID `json:"sessionID"`
}

type chatRequestBody struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

type sendMessageRequest struct {
	Message      string         `json:"message"`
	BinaryBucket []byte         `json:"binaryBucket"`
	Position     models.Vector3 `json:"position"`
}

type eventsResponse struct {
	Events []models.Event `json:"events"`
}

// StartSessionHandler opens the group's session with the caller as moderator
func (c Chat) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	agent, ok := c.agent(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.GroupID == uuid.Nil {
		config.ErrorStatus("groupID is required", http.StatusBadRequest, w, errors.New("missing groupID"))
		return
	}

	if !c.Coordinator.StartSession(r.Context(), agent, req.GroupID, req.GroupName) {
		config.ErrorStatus("failed to start session", http.StatusUnprocessableEntity, w, errSessionUnavailable)
		return
	}

	b, err := json.Marshal(startSessionResponse{Success: true, SessionID: req.GroupID})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RosterHandler returns the session's membership to one of its members
func (c Chat) RosterHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	agent, ok := c.agent(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	session, found := c.Coordinator.Roster(sessionID)
	if !found {
		config.ErrorStatus("failed to get session", http.StatusNotFound, w, errors.New("session not found"))
		return
	}
	if session.Member(agent.AgentID) == nil {
		config.ErrorStatus("failed to get session", http.StatusForbidden, w, errNotSessionMember)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ChatRequestHandler answers a chat session request such as accepting an
// invitation. An empty result means the request was not acted on.
func (c Chat) ChatRequestHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	agent, ok := c.agent(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	result := c.Coordinator.HandleChatRequest(agent, sessionID, req.Method, req.Params)
	b, err := json.Marshal(models.ChatRequestResponse{Result: result})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SendMessageHandler sends text to every member of the session
func (c Chat) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	agent, ok := c.agent(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.Message == "" {
		config.ErrorStatus("failed to send message", http.StatusBadRequest, w, errEmptyMessage)
		return
	}

	msg := clientMessage(agent, sessionID, models.DialogSessionSend)
	msg.Message = req.Message
	msg.BinaryBucket = req.BinaryBucket
	msg.Position = req.Position
	c.Coordinator.HandleClientMessage(agent, msg)

	w.WriteHeader(http.StatusAccepted)
}

// DropHandler removes the caller from the session
func (c Chat) DropHandler(w http.ResponseWriter, r *http.Request) {
	agent, ok := c.agent(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	c.Coordinator.HandleClientMessage(agent, clientMessage(agent, sessionID, models.DialogSessionDrop))
	w.WriteHeader(http.StatusNoContent)
}

// EventsHandler drains the caller's queued events
func (c Chat) EventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	agent, ok := api.AgentFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errNoAgent)
		return
	}

	events := c.Queue.Dequeue(agent.AgentID, agent.RegionHandle)
	if events == nil {
		events = []models.Event{}
	}
	zap.S().Debugw("drained events", "agentID", agent.AgentID, "count", len(events))

	b, err := json.Marshal(eventsResponse{Events: events})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// agent returns the authenticated caller and fails the request when group
// messaging is off
func (c Chat) agent(w http.ResponseWriter, r *http.Request) (models.Connection, bool) {
	agent, ok := api.AgentFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errNoAgent)
		return models.Connection{}, false
	}
	if c.Coordinator == nil || !c.Coordinator.Enabled() {
		config.ErrorStatus("group messaging unavailable", http.StatusServiceUnavailable, w, errMessagingDisabled)
		return models.Connection{}, false
	}
	return agent, true
}

func sessionIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(mux.Vars(r)["session_id"])
	if err != nil {
		config.ErrorStatus("failed to parse session_id", http.StatusBadRequest, w, err)
		return uuid.Nil, false
	}
	return sessionID, true
}

func clientMessage(agent models.Connection, sessionID uuid.UUID, dialog models.Dialog) models.RoutedMessage {
	return models.RoutedMessage{
		FromAgentID:   agent.AgentID,
		FromAgentName: agent.Name,
		SessionID:     sessionID,
		Dialog:        dialog,
		FromGroup:     true,
		RegionHandle:  agent.RegionHandle,
		Timestamp:     uint32(time.Now().Unix()),
	}
}

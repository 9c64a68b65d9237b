package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/api"
	"github.com/linesmerrill/region-chat-api/config"
	"github.com/linesmerrill/region-chat-api/presence"
)

// Presence upgrades agent connections onto the presence hub
type Presence struct {
	Hub      *presence.Hub
	Upgrader websocket.Upgrader
}

// ConnectHandler holds the agent's websocket until it disconnects
func (p Presence) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	agent, ok := api.AgentFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errors.New("no authenticated agent"))
		return
	}

	conn, err := p.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		zap.S().Warnw("websocket upgrade failed", "agentID", agent.AgentID, "error", err)
		return
	}
	p.Hub.Serve(conn, agent)
}

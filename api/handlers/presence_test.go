package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPresence_ConnectAndDisconnectAreLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	ta := newTestApp(t, true)
	srv := httptest.NewServer(ta.Router)
	defer srv.Close()

	agent := newAgent("Walker")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/agent?token=" + agentToken(t, agent)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := ta.Hub.FindLocalConnection(agent.AgentID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		return logs.FilterMessage("agent disconnected").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return logs.FilterMessage("agent disconnected").Len() > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("agent connected").Len())
}

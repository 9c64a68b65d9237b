package presence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 * 1024
)

// EventCredential is the first frame sent on a new connection when the hub
// issues enqueue credentials
const EventCredential = "EventQueueCredential"

// Client is one websocket connection held by an agent
type Client struct {
	info models.Connection
	conn *websocket.Conn
	wake chan struct{}
}

// outboundFrame is what the client receives
type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// inboundFrame is an instant message typed by the agent
type inboundFrame struct {
	Dialog       int            `json:"dialog"`
	SessionID    uuid.UUID      `json:"sessionID"`
	ToAgentID    uuid.UUID      `json:"toAgentID"`
	Message      string         `json:"message"`
	BinaryBucket []byte         `json:"binaryBucket"`
	Offline      bool           `json:"offline"`
	FromGroup    bool           `json:"fromGroup"`
	Position     models.Vector3 `json:"position"`
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Serve runs the connection until the peer goes away. It registers the
// connection, issues enqueue credentials, streams queued events and
// publishes every inbound frame as an instant message.
func (h *Hub) Serve(conn *websocket.Conn, info models.Connection) {
	c := &Client{info: info, conn: conn, wake: make(chan struct{}, 1)}

	h.register(c)
	defer h.unregister(c)

	if h.creds != nil && !info.IsChild {
		pass, err := h.creds.Issue(info.AgentID, info.RegionHandle)
		if err != nil {
			zap.S().Errorw("failed to issue enqueue credential", "agent", info.AgentID, "error", err)
		} else {
			defer h.creds.Revoke(info.AgentID, info.RegionHandle)
			c.write(outboundFrame{Event: EventCredential, Data: map[string]interface{}{
				"agentID":      info.AgentID,
				"regionHandle": info.RegionHandle,
				"pass":         pass,
			}})
		}
	}

	done := make(chan struct{})
	go h.writePump(c, done)
	h.readPump(c)
	close(done)
}

func (h *Hub) readPump(c *Client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Warnw("websocket read failed", "agent", c.info.AgentID, "error", err)
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			zap.S().Debugw("ignoring malformed frame", "agent", c.info.AgentID, "error", err)
			continue
		}
		h.Publish(Event{Kind: EventInstantMessage, Conn: c.info, Message: c.routed(frame)})
	}
}

func (c *Client) routed(f inboundFrame) models.RoutedMessage {
	msg := models.RoutedMessage{
		FromAgentID:   c.info.AgentID,
		FromAgentName: c.info.Name,
		ToAgentID:     f.ToAgentID,
		SessionID:     f.SessionID,
		Message:       f.Message,
		BinaryBucket:  f.BinaryBucket,
		Offline:       f.Offline,
		FromGroup:     f.FromGroup,
		Position:      f.Position,
		RegionHandle:  c.info.RegionHandle,
		Timestamp:     uint32(time.Now().Unix()),
	}
	msg.SetDialogCode(f.Dialog)
	return msg
}

func (h *Hub) writePump(c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// drain anything queued before the connection registered
	c.signal()
	for {
		select {
		case <-done:
			return
		case <-c.wake:
			for _, ev := range h.queue.Dequeue(c.info.AgentID, c.info.RegionHandle) {
				if err := c.write(outboundFrame{Event: ev.Message, Data: ev.Body}); err != nil {
					zap.S().Warnw("failed to deliver event", "agent", c.info.AgentID, "event", ev.Message, "error", err)
					c.conn.Close()
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (c *Client) write(frame outboundFrame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is one entry in an agent's delivery queue. Message names the event
// and Body carries its structured document.
type Event struct {
	Message  string                 `json:"message"`
	Body     map[string]interface{} `json:"body"`
	QueuedAt time.Time              `json:"queuedAt"`
}

// Event names pushed by the group chat coordinator
const (
	EventAgentListUpdates  = "ChatterBoxSessionAgentListUpdates"
	EventInvitation        = "ChatterBoxInvitation"
	EventSessionStartReply = "ChatterBoxSessionStartReply"
	EventInstantMessage    = "InstantMessage"
)

// QueueKey addresses a single delivery queue
type QueueKey struct {
	AgentID      uuid.UUID
	RegionHandle uint64
}

// ForwardAuthRequest is the decoded body of an inbound enqueue request
type ForwardAuthRequest struct {
	AgentID      uuid.UUID
	RegionHandle uint64
	Credential   uuid.UUID
	Payload      string
}

// EnqueueResponse is the result envelope returned by the enqueue endpoint
type EnqueueResponse struct {
	Result bool `json:"result"`
}

// Invitation carries everything needed to open a session window on the
// invitee's client and show the first message in one step
type Invitation struct {
	SessionID      uuid.UUID
	SessionName    string
	FromAgentID    uuid.UUID
	FromAgentName  string
	ToAgentID      uuid.UUID
	Message        string
	Dialog         Dialog
	Timestamp      uint32
	Offline        bool
	ParentEstateID uint32
	Position       Vector3
	FromGroup      bool
	BinaryBucket   []byte
}

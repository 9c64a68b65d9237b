package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Dialog is the intent of a RoutedMessage
type Dialog int

// Dialog values. The numeric values match the legacy instant message
// dialog codes so they can be carried over the wire unchanged.
const (
	DialogMessageFromAgent  Dialog = 0
	DialogSessionAdd        Dialog = 13
	DialogSessionGroupStart Dialog = 15
	DialogSessionSend       Dialog = 17
	DialogSessionDrop       Dialog = 18
)

// legacyForwardedDrop is the wire code older shards use for a drop that
// was already forwarded once.
const legacyForwardedDrop = 212

func (d Dialog) String() string {
	switch d {
	case DialogMessageFromAgent:
		return "MessageFromAgent"
	case DialogSessionAdd:
		return "SessionAdd"
	case DialogSessionGroupStart:
		return "SessionGroupStart"
	case DialogSessionSend:
		return "SessionSend"
	case DialogSessionDrop:
		return "SessionDrop"
	}
	return fmt.Sprintf("Dialog(%d)", int(d))
}

// Vector3 is a pass-through position
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// RoutedMessage is a group session event moving between clients and shards.
// Forwarded marks an event that has already crossed one shard boundary and
// must not be forwarded again.
type RoutedMessage struct {
	FromAgentID    uuid.UUID `json:"fromAgentID"`
	FromAgentName  string    `json:"fromAgentName"`
	ToAgentID      uuid.UUID `json:"toAgentID"`
	SessionID      uuid.UUID `json:"sessionID"`
	Dialog         Dialog    `json:"dialog"`
	Forwarded      bool      `json:"forwarded"`
	FromGroup      bool      `json:"fromGroup"`
	Message        string    `json:"message"`
	BinaryBucket   []byte    `json:"binaryBucket"`
	Timestamp      uint32    `json:"timestamp"`
	RegionHandle   uint64    `json:"regionHandle"`
	RegionID       uuid.UUID `json:"regionID"`
	Offline        bool      `json:"offline"`
	ParentEstateID uint32    `json:"parentEstateID"`
	Position       Vector3   `json:"position"`
}

// DialogCode returns the numeric code used on the wire
func (m RoutedMessage) DialogCode() int {
	if m.Dialog == DialogSessionDrop && m.Forwarded {
		return legacyForwardedDrop
	}
	return int(m.Dialog)
}

// SetDialogCode decodes a wire dialog code into Dialog and Forwarded
func (m *RoutedMessage) SetDialogCode(code int) {
	if code == legacyForwardedDrop {
		m.Dialog = DialogSessionDrop
		m.Forwarded = true
		return
	}
	m.Dialog = Dialog(code)
	m.Forwarded = false
}

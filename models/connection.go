package models

import "github.com/google/uuid"

// Connection describes an agent connected to this shard. A child
// connection is a neighbouring-region presence, not the agent's root.
type Connection struct {
	AgentID      uuid.UUID `json:"agentID"`
	Name         string    `json:"name"`
	RegionHandle uint64    `json:"regionHandle"`
	IsChild      bool      `json:"isChild"`
}

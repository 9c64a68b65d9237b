package eventqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Credentials maps (agent, region) to the shared secret a remote shard must
// present when enqueueing on that agent's behalf. Only bcrypt hashes are kept.
type Credentials struct {
	cache store.Cache
}

// NewCredentials creates a registry whose entries expire after ttl
func NewCredentials(ttl time.Duration) *Credentials {
	return &Credentials{cache: store.NewFIFO(context.Background(), ttl)}
}

func credentialKey(agentID uuid.UUID, regionHandle uint64) string {
	return fmt.Sprintf("%s:%d", agentID, regionHandle)
}

// Issue creates and registers a fresh credential for the agent
func (c *Credentials) Issue(agentID uuid.UUID, regionHandle uint64) (uuid.UUID, error) {
	pass := uuid.New()
	if err := c.Register(agentID, pass, regionHandle); err != nil {
		return uuid.Nil, err
	}
	return pass, nil
}

// Register stores a credential issued elsewhere, replacing any previous one
func (c *Credentials) Register(agentID, pass uuid.UUID, regionHandle uint64) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass.String()), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}
	return c.cache.Store(credentialKey(agentID, regionHandle), hash, nil)
}

// Revoke forgets the agent's credential
func (c *Credentials) Revoke(agentID uuid.UUID, regionHandle uint64) {
	if err := c.cache.Delete(credentialKey(agentID, regionHandle), nil); err != nil {
		zap.S().Debugw("failed to revoke credential", "agent", agentID, "error", err)
	}
}

// AuthenticateRequest reports whether pass is the credential registered for (agentID, regionHandle)
func (c *Credentials) AuthenticateRequest(agentID, pass uuid.UUID, regionHandle uint64) bool {
	v, ok, err := c.cache.Load(credentialKey(agentID, regionHandle), nil)
	if err != nil || !ok {
		return false
	}
	hash, ok := v.([]byte)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(pass.String())) == nil
}

package databases

// go generate: mockery --name ChatSessionDatabase

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linesmerrill/region-chat-api/models"
)

var (
	// ErrDuplicateSession is returned when creating a session whose id is already registered
	ErrDuplicateSession = errors.New("chat session already exists")
	// ErrSessionNotFound is returned when mutating a session that does not exist
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrEmptySession is returned when creating a session without members
	ErrEmptySession = errors.New("chat session has no members")
)

// ChatSessionDatabase is the in-memory registry of active group chat sessions.
//
// Membership answers two questions for the coordinator. An agent has been
// invited when a member record (pending or confirmed) exists. An agent has
// dropped when a drop tombstone exists for the (session, agent) pair. A
// removed member record alone cannot be told apart from one that never
// existed, so voluntary drops are recorded separately with RecordDrop and
// outlive the member record (and the session itself) until cleared or purged.
type ChatSessionDatabase interface {
	CreateSession(session *models.ChatSession) error
	GetSession(sessionID uuid.UUID) (*models.ChatSession, bool)
	RemoveSession(sessionID uuid.UUID)
	AddMember(member models.ChatSessionMember, sessionID uuid.UUID) (bool, error)
	FindMember(sessionID, avatarKey uuid.UUID) (models.ChatSessionMember, bool)
	UpdateSession(sessionID uuid.UUID, fn func(session *models.ChatSession) error) error
	HasAgentDroppedSession(agentID, sessionID uuid.UUID) bool
	HasAgentBeenInvited(agentID, sessionID uuid.UUID) bool
	RecordDrop(agentID, sessionID uuid.UUID, at time.Time)
	ClearDrop(agentID, sessionID uuid.UUID)
	DroppedAt(agentID, sessionID uuid.UUID) (time.Time, bool)
	PurgeDrops(olderThan time.Time) int
	Count() int
}

// sessionEntry serializes every read and write of one session
type sessionEntry struct {
	mu      sync.Mutex
	session *models.ChatSession
	removed bool
}

type dropKey struct {
	sessionID uuid.UUID
	agentID   uuid.UUID
}

type chatSessionDatabase struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry

	dropMu sync.Mutex
	drops  map[dropKey]time.Time
}

// NewChatSessionDatabase returns an empty session registry
func NewChatSessionDatabase() ChatSessionDatabase {
	return &chatSessionDatabase{
		sessions: make(map[uuid.UUID]*sessionEntry),
		drops:    make(map[dropKey]time.Time),
	}
}

func (c *chatSessionDatabase) entry(sessionID uuid.UUID) *sessionEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[sessionID]
}

func (c *chatSessionDatabase) CreateSession(session *models.ChatSession) error {
	if len(session.Members) == 0 {
		return ErrEmptySession
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[session.SessionID]; ok {
		return ErrDuplicateSession
	}
	c.sessions[session.SessionID] = &sessionEntry{session: session.Clone()}
	return nil
}

func (c *chatSessionDatabase) GetSession(sessionID uuid.UUID) (*models.ChatSession, bool) {
	e := c.entry(sessionID)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.session.Clone(), true
}

func (c *chatSessionDatabase) RemoveSession(sessionID uuid.UUID) {
	c.mu.Lock()
	e, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
}

// UpdateSession runs fn while holding the session's exclusive lock. A session
// left without members is destroyed before the lock is released.
func (c *chatSessionDatabase) UpdateSession(sessionID uuid.UUID, fn func(session *models.ChatSession) error) error {
	e := c.entry(sessionID)
	if e == nil {
		return ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrSessionNotFound
	}

	err := fn(e.session)

	if len(e.session.Members) == 0 {
		e.removed = true
		c.mu.Lock()
		if c.sessions[sessionID] == e {
			delete(c.sessions, sessionID)
		}
		c.mu.Unlock()
	}
	return err
}

func (c *chatSessionDatabase) AddMember(member models.ChatSessionMember, sessionID uuid.UUID) (bool, error) {
	added := false
	err := c.UpdateSession(sessionID, func(s *models.ChatSession) error {
		if s.Member(member.AvatarKey) != nil {
			return nil
		}
		s.Members = append(s.Members, member)
		added = true
		return nil
	})
	return added, err
}

func (c *chatSessionDatabase) FindMember(sessionID, avatarKey uuid.UUID) (models.ChatSessionMember, bool) {
	e := c.entry(sessionID)
	if e == nil {
		return models.ChatSessionMember{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return models.ChatSessionMember{}, false
	}
	if m := e.session.Member(avatarKey); m != nil {
		return *m, true
	}
	return models.ChatSessionMember{}, false
}

func (c *chatSessionDatabase) HasAgentBeenInvited(agentID, sessionID uuid.UUID) bool {
	_, ok := c.FindMember(sessionID, agentID)
	return ok
}

func (c *chatSessionDatabase) HasAgentDroppedSession(agentID, sessionID uuid.UUID) bool {
	_, ok := c.DroppedAt(agentID, sessionID)
	return ok
}

func (c *chatSessionDatabase) RecordDrop(agentID, sessionID uuid.UUID, at time.Time) {
	c.dropMu.Lock()
	defer c.dropMu.Unlock()
	c.drops[dropKey{sessionID: sessionID, agentID: agentID}] = at
}

func (c *chatSessionDatabase) ClearDrop(agentID, sessionID uuid.UUID) {
	c.dropMu.Lock()
	defer c.dropMu.Unlock()
	delete(c.drops, dropKey{sessionID: sessionID, agentID: agentID})
}

func (c *chatSessionDatabase) DroppedAt(agentID, sessionID uuid.UUID) (time.Time, bool) {
	c.dropMu.Lock()
	defer c.dropMu.Unlock()
	at, ok := c.drops[dropKey{sessionID: sessionID, agentID: agentID}]
	return at, ok
}

// PurgeDrops forgets tombstones recorded before olderThan and returns how many were removed
func (c *chatSessionDatabase) PurgeDrops(olderThan time.Time) int {
	c.dropMu.Lock()
	defer c.dropMu.Unlock()
	n := 0
	for k, at := range c.drops {
		if at.Before(olderThan) {
			delete(c.drops, k)
			n++
		}
	}
	return n
}

func (c *chatSessionDatabase) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

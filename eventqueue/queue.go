// Package eventqueue is the shard-local delivery queue: events addressed to
// an (agent, region) pair wait here until the agent's connection drains them.
package eventqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/models"
)

// DefaultMaxPerAgent bounds a single agent's backlog
const DefaultMaxPerAgent = 256

// Queue holds pending events per (agent, region)
type Queue struct {
	mu          sync.Mutex
	queues      map[models.QueueKey][]models.Event
	maxPerAgent int
	notify      func(models.QueueKey)
	now         func() time.Time
}

// NewQueue creates an empty queue. maxPerAgent <= 0 uses DefaultMaxPerAgent.
func NewQueue(maxPerAgent int) *Queue {
	if maxPerAgent <= 0 {
		maxPerAgent = DefaultMaxPerAgent
	}
	return &Queue{
		queues:      make(map[models.QueueKey][]models.Event),
		maxPerAgent: maxPerAgent,
		now:         time.Now,
	}
}

// SetNotifier registers fn to be called, outside the queue lock, after
// every successful enqueue
func (q *Queue) SetNotifier(fn func(models.QueueKey)) {
	q.mu.Lock()
	q.notify = fn
	q.mu.Unlock()
}

// Enqueue appends ev to the agent's queue. When the backlog is full the
// oldest event is discarded.
func (q *Queue) Enqueue(ev models.Event, agentID uuid.UUID, regionHandle uint64) bool {
	if ev.Message == "" {
		return false
	}
	if ev.QueuedAt.IsZero() {
		ev.QueuedAt = q.now()
	}
	key := models.QueueKey{AgentID: agentID, RegionHandle: regionHandle}

	q.mu.Lock()
	pending := q.queues[key]
	if len(pending) >= q.maxPerAgent {
		zap.S().Warnw("event queue full, dropping oldest event",
			"agent", agentID,
			"region", regionHandle,
			"dropped", pending[0].Message)
		pending = pending[1:]
	}
	q.queues[key] = append(pending, ev)
	notify := q.notify
	q.mu.Unlock()

	if notify != nil {
		notify(key)
	}
	return true
}

// EnqueueDocument enqueues a structured event document of the form
// {message: string, body: map}
func (q *Queue) EnqueueDocument(doc map[string]interface{}, agentID uuid.UUID, regionHandle uint64) bool {
	name, _ := doc["message"].(string)
	body, _ := doc["body"].(map[string]interface{})
	if body == nil {
		body = map[string]interface{}{}
	}
	return q.Enqueue(models.Event{Message: name, Body: body}, agentID, regionHandle)
}

// Dequeue removes and returns every pending event for the agent
func (q *Queue) Dequeue(agentID uuid.UUID, regionHandle uint64) []models.Event {
	key := models.QueueKey{AgentID: agentID, RegionHandle: regionHandle}
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.queues[key]
	delete(q.queues, key)
	return events
}

// Len reports the agent's backlog
func (q *Queue) Len(agentID uuid.UUID, regionHandle uint64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[models.QueueKey{AgentID: agentID, RegionHandle: regionHandle}])
}

// Evict drops events queued before olderThan and returns how many were removed
func (q *Queue) Evict(olderThan time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for key, events := range q.queues {
		kept := events[:0]
		for _, ev := range events {
			if ev.QueuedAt.Before(olderThan) {
				n++
				continue
			}
			kept = append(kept, ev)
		}
		if len(kept) == 0 {
			delete(q.queues, key)
		} else {
			q.queues[key] = kept
		}
	}
	return n
}

package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/metrics"
)

// EventQueue is the part of the agent event queue the scheduler sweeps
type EventQueue interface {
	Evict(olderThan time.Time) int
}

// SessionStore is the part of the chat session store the scheduler sweeps
type SessionStore interface {
	PurgeDrops(olderThan time.Time) int
	Count() int
}

// Scheduler runs the periodic housekeeping jobs of a shard
type Scheduler struct {
	cron         *cron.Cron
	Queue        EventQueue
	Sessions     SessionStore
	EventTTL     time.Duration
	TombstoneTTL time.Duration
	now          func() time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(queue EventQueue, sessions SessionStore, eventTTL, tombstoneTTL time.Duration) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.UTC)),
		Queue:        queue,
		Sessions:     sessions,
		EventTTL:     eventTTL,
		TombstoneTTL: tombstoneTTL,
		now:          time.Now,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Undelivered events are only useful while the agent is likely to come back
	_, err := s.cron.AddFunc("@every 1m", s.evictEvents)
	if err != nil {
		zap.S().Errorw("failed to register event eviction job", "error", err)
	}

	_, err = s.cron.AddFunc("@every 15m", s.purgeTombstones)
	if err != nil {
		zap.S().Errorw("failed to register tombstone purge job", "error", err)
	}

	_, err = s.cron.AddFunc("@every 30s", s.recordSessionGauge)
	if err != nil {
		zap.S().Errorw("failed to register session gauge job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Housekeeping scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Housekeeping scheduler stopped")
}

func (s *Scheduler) evictEvents() {
	n := s.Queue.Evict(s.now().Add(-s.EventTTL))
	if n == 0 {
		return
	}
	metrics.EventsEvicted.Add(float64(n))
	zap.S().Infow("evicted undelivered events", "count", n, "ttl", s.EventTTL)
}

func (s *Scheduler) purgeTombstones() {
	n := s.Sessions.PurgeDrops(s.now().Add(-s.TombstoneTTL))
	if n == 0 {
		return
	}
	metrics.TombstonesPurged.Add(float64(n))
	zap.S().Debugw("purged drop tombstones", "count", n)
}

func (s *Scheduler) recordSessionGauge() {
	metrics.ActiveSessions.Set(float64(s.Sessions.Count()))
}

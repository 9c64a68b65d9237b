package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/logging"
	"github.com/linesmerrill/region-chat-api/metrics"
	"github.com/linesmerrill/region-chat-api/models"
)

// DefaultSendTimeout bounds a single transfer
const DefaultSendTimeout = 10 * time.Second

type forwardTask struct {
	msg        models.RoutedMessage
	recipients []uuid.UUID
}

// Forwarder queues outbound messages and hands them to a Transfer from a
// fixed pool of workers. Forward never blocks: when the queue is full the
// message is dropped.
type Forwarder struct {
	transfer    Transfer
	tasks       chan forwardTask
	workers     int
	sendTimeout time.Duration
	log         *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// NewForwarder creates a forwarder. Call Start to run its workers.
func NewForwarder(transfer Transfer, queueSize, workers int) *Forwarder {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Forwarder{
		transfer:    transfer,
		tasks:       make(chan forwardTask, queueSize),
		workers:     workers,
		sendTimeout: DefaultSendTimeout,
		log:         logging.New("forwarder"),
	}
}

// Start launches the worker pool
func (f *Forwarder) Start() {
	f.once.Do(func() {
		for i := 0; i < f.workers; i++ {
			f.wg.Add(1)
			go f.work()
		}
		f.log.Infow("forwarder started", "workers", f.workers, "queue", cap(f.tasks))
	})
}

// Forward queues msg for recipients
func (f *Forwarder) Forward(msg models.RoutedMessage, recipients []uuid.UUID) {
	if len(recipients) == 0 {
		return
	}
	task := forwardTask{msg: msg, recipients: append([]uuid.UUID(nil), recipients...)}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		metrics.ForwardsDropped.WithLabelValues("closed").Inc()
		return
	}
	select {
	case f.tasks <- task:
		metrics.ForwardsQueued.Inc()
	default:
		metrics.ForwardsDropped.WithLabelValues("queue_full").Inc()
		f.log.Warnw("forward queue full, dropping message",
			"session", msg.SessionID,
			"dialog", msg.Dialog.String(),
			"recipients", len(recipients))
	}
}

// Close stops accepting messages and waits for queued ones to be sent
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.tasks)
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Forwarder) work() {
	defer f.wg.Done()
	for task := range f.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), f.sendTimeout)
		err := f.transfer.Send(ctx, task.msg, task.recipients)
		cancel()
		if err != nil {
			metrics.ForwardsDropped.WithLabelValues("transfer_error").Inc()
			f.log.Errorw("failed to forward message",
				"session", task.msg.SessionID,
				"dialog", task.msg.Dialog.String(),
				"recipients", len(task.recipients),
				"error", err)
		}
	}
}

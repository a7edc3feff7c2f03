package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/repo"

	"go.uber.org/zap"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 4
)

// TokenStore resolves the device push tokens registered for a user.
type TokenStore interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
}

// Pusher hands a notification to the platform push surface for one device.
// Delivery is fire-and-forget; errors are reported for logging only.
type Pusher interface {
	Push(ctx context.Context, token, title, body string, data model.NotificationData) error
}

// Dispatcher converts undelivered conversation events into push
// notifications. It runs as a background worker pool with its own queue,
// decoupled from any subscription lifecycle, so dispatch continues when no
// foreground conversation view is open. Enqueue never blocks the caller.
type Dispatcher struct {
	queue   chan model.Notification
	records repo.NotificationRepository
	tokens  TokenStore
	pusher  Pusher
	logger  *zap.Logger

	enqueued  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewDispatcher(records repo.NotificationRepository, tokens TokenStore, pusher Pusher, queueSize, workers int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:   make(chan model.Notification, queueSize),
		records: records,
		tokens:  tokens,
		pusher:  pusher,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Enqueue queues a notification for background dispatch without blocking.
// On overflow the event is dropped and counted; duplicates and drops are
// acceptable on this path.
func (d *Dispatcher) Enqueue(n model.Notification) {
	select {
	case <-d.ctx.Done():
		d.dropped.Add(1)
		return
	case d.queue <- n:
		d.enqueued.Add(1)
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, event dropped",
			zap.String("user_id", n.UserID),
			zap.String("category", n.Category),
		)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case n, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(n)
		}
	}
}

// process stores the durable record first, then attempts the push leg. The
// record stays queryable whether or not any push succeeds.
func (d *Dispatcher) process(n model.Notification) {
	if _, err := d.records.Insert(d.ctx, &n); err != nil {
		d.logger.Error("failed to persist notification record",
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		// Push anyway: the event is already best-effort.
	}

	tokens, err := d.tokens.Tokens(d.ctx, n.UserID)
	if err != nil {
		d.logger.Warn("push token lookup failed",
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		return
	}
	if len(tokens) == 0 {
		d.logger.Debug("no push tokens registered", zap.String("user_id", n.UserID))
		return
	}

	for _, token := range tokens {
		if err := d.pusher.Push(d.ctx, token, n.Title, n.Body, n.Data); err != nil {
			// Push failure is logged and dropped, never retried or surfaced.
			d.logger.Warn("push delivery failed",
				zap.String("user_id", n.UserID),
				zap.String("token", token),
				zap.Error(err),
			)
			continue
		}
		d.delivered.Add(1)
	}
}

// Stats reports queue depth and lifetime counters.
func (d *Dispatcher) Stats() model.DispatcherStats {
	return model.DispatcherStats{
		QueueDepth: len(d.queue),
		Enqueued:   d.enqueued.Load(),
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
	}
}

// Stop halts the worker pool. Queued events still undelivered are dropped;
// their records may already be persisted.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
	})
}

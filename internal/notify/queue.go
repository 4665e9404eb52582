package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"callIndexer/internal/metrics"
)

// ErrQueueFull is returned when a notification is dropped for lack of room.
var ErrQueueFull = errors.New("notification queue full")

// ErrQueueClosed is returned for notifications offered after Close.
var ErrQueueClosed = errors.New("notification queue closed")

// Queue is a Notifier that buffers messages and delivers them from a single
// goroutine, so callers never wait on the transport.
type Queue struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	ch     chan Message
	closed bool
	done   chan struct{}
}

// NewQueue starts the dispatch goroutine. Close must be called to stop it.
func NewQueue(sender Sender, size int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 1
	}
	q := &Queue{
		sender:  sender,
		logger:  logger,
		timeout: 10 * time.Second,
		now:     time.Now,
		ch:      make(chan Message, size),
		done:    make(chan struct{}),
	}
	go q.dispatch()
	return q
}

func (q *Queue) NotifyBacked(_ context.Context, creator, staker string, callID uint64) error {
	return q.enqueue(newMessage(q.now, TypeBacked, creator, staker, callID))
}

func (q *Queue) NotifyCallEnded(_ context.Context, creator string, callID uint64) error {
	return q.enqueue(newMessage(q.now, TypeCallEnded, creator, "", callID))
}

func (q *Queue) NotifyPayoutReady(_ context.Context, staker string, callID uint64) error {
	return q.enqueue(newMessage(q.now, TypePayoutReady, staker, "", callID))
}

func (q *Queue) enqueue(msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		metrics.IncNotification(msg.Type, "queued")
		return nil
	default:
		metrics.IncNotification(msg.Type, "dropped")
		return ErrQueueFull
	}
}

func (q *Queue) dispatch() {
	defer close(q.done)
	for msg := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.sender.Send(ctx, msg)
		cancel()
		if err != nil {
			metrics.IncNotification(msg.Type, "failed")
			q.logger.Warn("notification delivery failed",
				zap.String("type", msg.Type),
				zap.String("recipient", msg.Recipient),
				zap.Uint64("call_id", msg.CallID),
				zap.Error(err),
			)
			continue
		}
		metrics.IncNotification(msg.Type, "sent")
	}
}

// Close stops accepting messages and waits until queued ones are delivered
// or ctx expires.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

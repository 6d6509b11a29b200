package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"go.uber.org/zap"
)

// ErrQueueFull is returned when the async queue cannot take another notice.
var ErrQueueFull = errors.New("notification queue full")

// ErrNotifierClosed is returned after Close.
var ErrNotifierClosed = errors.New("notifier closed")

// AsyncNotifier delivers notices on a bounded worker pool so webhook
// handling never waits on a slow channel.
type AsyncNotifier struct {
	inner   outbound.CompletionNotifierPort
	queue   chan *model.CompletionNotice
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncNotifier starts workers delivering to inner.
func NewAsyncNotifier(inner outbound.CompletionNotifierPort, queueSize, workers int, timeout time.Duration, logger *zap.Logger) *AsyncNotifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &AsyncNotifier{
		inner:   inner,
		queue:   make(chan *model.CompletionNotice, queueSize),
		timeout: timeout,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// NotifyCompletion enqueues the notice. It never blocks.
func (n *AsyncNotifier) NotifyCompletion(_ context.Context, notice *model.CompletionNotice) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}

	c := *notice
	select {
	case n.queue <- &c:
		return nil
	default:
		n.logger.Error("notification queue full, dropping notice",
			zap.String("order_id", notice.OrderID),
			zap.String("session_id", notice.SessionID),
		)
		return ErrQueueFull
	}
}

func (n *AsyncNotifier) worker() {
	defer n.wg.Done()
	for notice := range n.queue {
		n.deliver(notice)
	}
}

func (n *AsyncNotifier) deliver(notice *model.CompletionNotice) {
	ctx := context.Background()
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.inner.NotifyCompletion(ctx, notice); err != nil {
		n.logger.Error("completion notification failed",
			zap.String("order_id", notice.OrderID),
			zap.String("session_id", notice.SessionID),
			zap.Error(err),
		)
	}
}

// Close stops accepting notices and waits for queued ones until ctx is done.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

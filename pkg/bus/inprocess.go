package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/slacklet/slacklet/pkg/logger"
)

const component = "bus"

// InProcess is a channel-backed bus for single-process deployments. Each
// published message is delivered to the handler exactly once by one of a
// fixed pool of workers, so script invocations run isolated from each other
// and from the request that published them. Deployments that need delivery
// beyond the process lifetime put a durable transport (SNS, NATS, ...)
// behind the same Publisher interface.
type InProcess struct {
	handler Handler
	queue   chan *FanoutMessage
	workers int

	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInProcess creates a bus delivering to handler with the given number of
// worker goroutines. Start must be called before publishing.
func NewInProcess(handler Handler, workers int) *InProcess {
	if workers <= 0 {
		workers = 1
	}
	return &InProcess{
		handler: handler,
		queue:   make(chan *FanoutMessage, 64),
		workers: workers,
	}
}

// Start launches the worker pool. Workers run until Close.
func (b *InProcess) Start() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.work()
	}
}

func (b *InProcess) work() {
	defer b.wg.Done()
	for msg := range b.queue {
		b.deliver(msg)
	}
}

// deliver runs the handler for one message. Panics and errors stay
// contained to this delivery.
func (b *InProcess) deliver(msg *FanoutMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF(component, "delivery panicked", map[string]interface{}{
				"id":     msg.ID,
				"script": msg.Script,
				"panic":  fmt.Sprintf("%v", rec),
			})
		}
	}()

	if err := b.handler(context.Background(), msg); err != nil {
		logger.ErrorCF(component, "delivery failed", map[string]interface{}{
			"id":     msg.ID,
			"script": msg.Script,
			"error":  err,
		})
	}
}

// Publish implements Publisher. It blocks while the queue is full rather
// than dropping, and fails once the bus is closed or the context ends.
func (b *InProcess) Publish(ctx context.Context, msg *FanoutMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus: closed")
	}

	select {
	case b.queue <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bus: publish: %w", ctx.Err())
	}
}

// Close stops accepting publishes and waits for in-flight deliveries.
func (b *InProcess) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.queue)
		b.wg.Wait()
	})
}

var _ Publisher = (*InProcess)(nil)

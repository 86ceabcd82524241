package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/logging"
)

// enqueueWait bounds how long Enqueue blocks on a full queue.
const enqueueWait = 100 * time.Millisecond

// Observer receives the outcome of every message ("sent", "failed",
// "dropped"). *metrics.Metrics satisfies it.
type Observer interface {
	Notification(kind, outcome string)
}

type nopObserver struct{}

func (nopObserver) Notification(string, string) {}

// Dispatcher delivers messages asynchronously through a Transport. Failed
// deliveries are logged and never retried.
type Dispatcher struct {
	transport   Transport
	logger      logging.Logger
	observer    Observer
	sendTimeout time.Duration

	ch   chan Message
	done chan struct{}
	wg   sync.WaitGroup

	// mu is held for reading across an enqueue and for writing while
	// closing, so no message enters the queue after the workers drain it.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines reading from a queue of
// queueSize messages.
func NewDispatcher(transport Transport, workers, queueSize int, sendTimeout time.Duration, observer Observer, logger logging.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}

	d := &Dispatcher{
		transport:   transport,
		logger:      logger,
		observer:    observer,
		sendTimeout: sendTimeout,
		ch:          make(chan Message, queueSize),
		done:        make(chan struct{}),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx := context.Background()
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	if err := d.transport.Send(ctx, msg); err != nil {
		d.logger.Error(ctx, "failed to send notification", "kind", string(msg.Kind), "to", msg.To, "error", err)
		d.observer.Notification(string(msg.Kind), "failed")
		return
	}
	d.observer.Notification(string(msg.Kind), "sent")
}

// Enqueue hands msg to the workers. It reports false when the dispatcher
// is closed or the queue stayed full for enqueueWait.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "dispatcher closed")
		return false
	}

	timer := time.NewTimer(enqueueWait)
	defer timer.Stop()

	select {
	case d.ch <- msg:
		return true
	case <-timer.C:
		d.drop(msg, "queue full")
	}
	return false
}

func (d *Dispatcher) drop(msg Message, reason string) {
	d.logger.Warn(context.Background(), "notification dropped", "kind", string(msg.Kind), "to", msg.To, "reason", reason)
	d.observer.Notification(string(msg.Kind), "dropped")
}

// Close stops intake and waits for queued messages to be delivered or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package bus

import (
	"context"
	"sync"
	"time"
)

// Mailbox is a per-agent ordered queue of undelivered messages. It is
// exclusively owned by the bus: created at registration and discarded,
// pending contents included, at unregistration. Producers append without
// blocking; a single consumer drains in FIFO order via receive.
type Mailbox struct {
	identity string

	mu    sync.Mutex
	queue []Message

	// notify carries a wakeup hint to the blocked consumer. Capacity one
	// is sufficient for the single-consumer contract: the consumer always
	// re-checks the queue before waiting again.
	notify chan struct{}
}

func newMailbox(identity string) *Mailbox {
	return &Mailbox{identity: identity, notify: make(chan struct{}, 1)}
}

// Identity returns the agent identity the mailbox belongs to.
func (m *Mailbox) Identity() string { return m.identity }

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// enqueue appends a message and wakes the consumer. It never blocks,
// regardless of how slow the consumer is.
func (m *Mailbox) enqueue(msg Message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mailbox) tryDequeue() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Message{}, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// receive blocks until a message is available, the timeout elapses or the
// context is cancelled. A timeout yields (nil, nil); cancellation yields
// the context error. timeout <= 0 means wait indefinitely.
func (m *Mailbox) receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		if msg, ok := m.tryDequeue(); ok {
			return &msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timerC:
			// Final poll covers an enqueue racing the timer.
			if msg, ok := m.tryDequeue(); ok {
				return &msg, nil
			}
			return nil, nil
		case <-m.notify:
		}
	}
}

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentsquad/logging"
)

// DefaultHistorySize bounds the diagnostic message history.
const DefaultHistorySize = 1000

// UnknownAgentError is returned when an operation references an identity
// that was never registered with the bus.
type UnknownAgentError struct {
	Identity string
}

// Error implements the error interface.
func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("agent %s not registered", e.Identity)
}

// Options configures a Bus.
type Options struct {
	// HistorySize bounds the diagnostic history buffer (defaults to 1000).
	HistorySize int
	// Logger receives registration and delivery diagnostics.
	Logger logging.Logger
}

// Bus is an in-memory publish/subscribe message bus for agent
// communication. Agents register to obtain a mailbox, optionally subscribe
// to message types, and publish to named recipients or to every other
// agent via the Broadcast sentinel. All methods are safe for concurrent
// use; Publish never blocks on a slow consumer.
type Bus struct {
	mu        sync.RWMutex
	mailboxes map[string]*Mailbox
	subs      map[string]map[string]struct{}
	history   *historyRing
	logger    logging.Logger
}

// New constructs an empty message bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		HistorySize: DefaultHistorySize,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bus{
		mailboxes: make(map[string]*Mailbox),
		subs:      make(map[string]map[string]struct{}),
		history:   newHistoryRing(opts.HistorySize),
		logger:    opts.Logger,
	}
}

// Register creates a mailbox for the identity. Registering an already
// registered identity is idempotent: the existing mailbox is returned and
// a warning is logged.
func (b *Bus) Register(identity string) *Mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()

	if mb, ok := b.mailboxes[identity]; ok {
		b.logger.Warn("agent already registered", "identity", identity)
		return mb
	}

	mb := newMailbox(identity)
	b.mailboxes[identity] = mb
	b.logger.Info("registered agent", "identity", identity)
	return mb
}

// Unregister removes the identity's mailbox and purges the identity from
// every subscription set. Messages still queued in the mailbox are
// discarded; this silent loss is intentional, documented behavior.
func (b *Bus) Unregister(identity string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.mailboxes[identity]; ok {
		delete(b.mailboxes, identity)
		b.logger.Info("unregistered agent", "identity", identity)
	}

	for messageType, set := range b.subs {
		delete(set, identity)
		if len(set) == 0 {
			delete(b.subs, messageType)
		}
	}
}

// Subscribe adds the identity to the subscription set for a message type.
// Subscribing twice is a no-op.
func (b *Bus) Subscribe(identity, messageType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[messageType]
	if !ok {
		set = make(map[string]struct{})
		b.subs[messageType] = set
	}
	if _, ok := set[identity]; !ok {
		set[identity] = struct{}{}
		b.logger.Debug("agent subscribed", "identity", identity, "message_type", messageType)
	}
}

// Unsubscribe removes the identity from the subscription set for a message
// type. Unsubscribing when not subscribed is a no-op.
func (b *Bus) Unsubscribe(identity, messageType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[messageType]; ok {
		if _, ok := set[identity]; ok {
			delete(set, identity)
			if len(set) == 0 {
				delete(b.subs, messageType)
			}
			b.logger.Debug("agent unsubscribed", "identity", identity, "message_type", messageType)
		}
	}
}

// Publish delivers a message to the union of the named recipient (when not
// the Broadcast sentinel and registered), every subscriber to the message
// type except the sender, and, for broadcasts, every registered agent
// except the sender. The message is always appended to the history buffer,
// even when the delivery set is empty.
func (b *Bus) Publish(message Message) {
	if message.ID == "" {
		message.ID = NewID()
	}
	if message.Timestamp == 0 {
		message.Timestamp = unixSeconds(time.Now())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.history.append(message)

	recipients := make(map[string]struct{})

	if !message.IsBroadcast() {
		if _, ok := b.mailboxes[message.Recipient]; ok {
			recipients[message.Recipient] = struct{}{}
		}
	}

	for identity := range b.subs[message.Type] {
		if identity != message.Sender {
			recipients[identity] = struct{}{}
		}
	}

	if message.IsBroadcast() {
		for identity := range b.mailboxes {
			if identity != message.Sender {
				recipients[identity] = struct{}{}
			}
		}
	}

	for identity := range recipients {
		mb, ok := b.mailboxes[identity]
		if !ok {
			continue
		}
		mb.enqueue(message)
		if sl, ok := b.logger.(*logging.SquadLogger); ok {
			sl.LogDelivery(message.Sender, identity, message.Type)
		} else {
			b.logger.Debug("delivered message", "sender", message.Sender, "recipient", identity, "message_type", message.Type)
		}
	}

	if len(recipients) == 0 {
		b.logger.Debug("no recipients for message", "sender", message.Sender, "message_type", message.Type)
	}
}

// Send constructs a message and publishes it.
func (b *Bus) Send(sender, recipient, messageType string, content any, metadata map[string]any) {
	b.Publish(NewMessage(sender, recipient, messageType, content, metadata))
}

// Receive blocks until a message is available in the identity's mailbox or
// the timeout elapses, returning (nil, nil) on timeout. It fails with
// UnknownAgentError if the identity was never registered. timeout <= 0
// waits until a message arrives or the context is cancelled.
func (b *Bus) Receive(ctx context.Context, identity string, timeout time.Duration) (*Message, error) {
	b.mu.RLock()
	mb, ok := b.mailboxes[identity]
	b.mu.RUnlock()

	if !ok {
		return nil, &UnknownAgentError{Identity: identity}
	}
	return mb.receive(ctx, timeout)
}

// History returns up to limit entries from the diagnostic history buffer,
// newest first. The history is best effort and not authoritative state.
func (b *Bus) History(limit int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.history.newest(limit)
}

// ClearHistory drops all history entries.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.clear()
	b.logger.Debug("message history cleared")
}

// Subscriptions returns the message types the identity is subscribed to,
// in unspecified order.
func (b *Bus) Subscriptions(identity string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var types []string
	for messageType, set := range b.subs {
		if _, ok := set[identity]; ok {
			types = append(types, messageType)
		}
	}
	return types
}

// Stats is a point-in-time snapshot of bus state for diagnostics.
type Stats struct {
	RegisteredAgents []string       `json:"registered_agents"`
	TotalAgents      int            `json:"total_agents"`
	Subscriptions    map[string]int `json:"subscriptions"`
	HistorySize      int            `json:"message_history_size"`
	QueueSizes       map[string]int `json:"queue_sizes"`
}

// Stats returns a snapshot of registered agents, subscription counts,
// history length and per-mailbox backlog.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		TotalAgents:   len(b.mailboxes),
		Subscriptions: make(map[string]int, len(b.subs)),
		HistorySize:   b.history.len(),
		QueueSizes:    make(map[string]int, len(b.mailboxes)),
	}
	for identity, mb := range b.mailboxes {
		st.RegisteredAgents = append(st.RegisteredAgents, identity)
		st.QueueSizes[identity] = mb.Len()
	}
	for messageType, set := range b.subs {
		st.Subscriptions[messageType] = len(set)
	}
	return st
}

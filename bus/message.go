package bus

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast is the reserved recipient sentinel addressing every registered
// agent except the sender.
const Broadcast = "all"

// Message is an immutable record passed between agents. Content is an
// opaque structured payload (nested maps/slices/scalars); the bus never
// inspects it beyond routing on Type. Timestamp is fractional seconds
// since the Unix epoch and is assigned exactly once, at construction when
// absent.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Type      string         `json:"message_type"`
	Content   any            `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// NewMessage constructs a message with a fresh ID and the current time.
func NewMessage(sender, recipient, messageType string, content any, metadata map[string]any) Message {
	return Message{
		ID:        NewID(),
		Sender:    sender,
		Recipient: recipient,
		Type:      messageType,
		Content:   content,
		Metadata:  metadata,
		Timestamp: unixSeconds(time.Now()),
	}
}

// IsBroadcast reports whether the message is addressed to all agents.
func (m Message) IsBroadcast() bool { return m.Recipient == Broadcast }

// Time returns the timestamp as a time.Time.
func (m Message) Time() time.Time {
	sec := int64(m.Timestamp)
	nsec := int64((m.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// NewID generates a unique identifier for messages.
func NewID() string { return uuid.NewString() }

func unixSeconds(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

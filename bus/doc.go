// Package bus provides the in-memory publish/subscribe message bus agents
// use to communicate. Each registered agent owns a mailbox (an ordered
// queue of undelivered messages); publishing fans a message out to the
// named recipient, to subscribers of the message type and, for the "all"
// sentinel, to every other registered agent. Delivery is FIFO per mailbox
// with no global order across mailboxes, and publishing never blocks on a
// slow consumer. A bounded history buffer retains the most recent
// published messages for diagnostics.
//
// The bus is single-process and volatile: no durability or cross-process
// guarantees are made, and history may be lost on restart.
package bus

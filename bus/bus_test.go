package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SendAndReceive(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")

	b.Send("alpha", "bravo", "status", map[string]any{"ok": true}, nil)

	msg, err := b.Receive(context.Background(), "bravo", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "alpha", msg.Sender)
	assert.Equal(t, "bravo", msg.Recipient)
	assert.Equal(t, "status", msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.Greater(t, msg.Timestamp, 0.0)
}

func TestBus_ReceiveTimeout(t *testing.T) {
	b := New()
	b.Register("alpha")

	msg, err := b.Receive(context.Background(), "alpha", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestBus_ReceiveUnknownAgent(t *testing.T) {
	b := New()

	_, err := b.Receive(context.Background(), "ghost", time.Second)
	var unknown *UnknownAgentError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ghost", unknown.Identity)
}

func TestBus_ReceiveContextCancel(t *testing.T) {
	b := New()
	b.Register("alpha")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Receive(ctx, "alpha", 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBus_ReceiveBlocksUntilPublish(t *testing.T) {
	b := New()
	b.Register("alpha")

	go func() {
		time.Sleep(50 * time.Millisecond)
		b.Send("bravo", "alpha", "late", nil, nil)
	}()

	msg, err := b.Receive(context.Background(), "alpha", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "late", msg.Type)
}

func TestBus_FIFOPerMailbox(t *testing.T) {
	b := New()
	b.Register("alpha")

	for i := 0; i < 5; i++ {
		b.Send("bravo", "alpha", "seq", i, nil)
	}

	for i := 0; i < 5; i++ {
		msg, err := b.Receive(context.Background(), "alpha", time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, i, msg.Content)
	}
}

func TestBus_BroadcastExcludesSender(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")
	b.Register("charlie")

	b.Send("alpha", Broadcast, "announce", "hello", nil)

	for _, identity := range []string{"bravo", "charlie"} {
		msg, err := b.Receive(context.Background(), identity, time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg, "expected delivery to %s", identity)
		assert.Equal(t, "announce", msg.Type)
	}

	msg, err := b.Receive(context.Background(), "alpha", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "sender must not receive its own broadcast")
}

func TestBus_SubscriptionDelivery(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")
	b.Register("charlie")
	b.Subscribe("bravo", "intel")

	b.Send("alpha", "charlie", "intel", "payload", nil)

	for _, identity := range []string{"bravo", "charlie"} {
		msg, err := b.Receive(context.Background(), identity, time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg, "expected delivery to %s", identity)
	}
}

func TestBus_SubscribedRecipientGetsSingleCopy(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")
	b.Subscribe("bravo", "intel")

	// bravo is both the named recipient and a type subscriber.
	b.Send("alpha", "bravo", "intel", "payload", nil)

	msg, err := b.Receive(context.Background(), "bravo", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)

	dup, err := b.Receive(context.Background(), "bravo", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, dup, "delivery set must deduplicate")
}

func TestBus_SenderSubscriptionExcluded(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")
	b.Subscribe("alpha", "intel")

	b.Send("alpha", "bravo", "intel", "payload", nil)

	msg, err := b.Receive(context.Background(), "alpha", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "sender must not receive via its own subscription")
}

func TestBus_RegisterIdempotent(t *testing.T) {
	b := New()
	mb1 := b.Register("alpha")
	b.Send("bravo", "alpha", "queued", nil, nil)

	mb2 := b.Register("alpha")
	assert.Same(t, mb1, mb2)

	// The queued message survived the re-registration.
	msg, err := b.Receive(context.Background(), "alpha", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
}

func TestBus_UnregisterPurgesState(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Subscribe("alpha", "intel")

	b.Unregister("alpha")

	_, err := b.Receive(context.Background(), "alpha", time.Second)
	var unknown *UnknownAgentError
	require.True(t, errors.As(err, &unknown))
	assert.Empty(t, b.Subscriptions("alpha"))
}

func TestBus_SubscribeUnsubscribe(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")

	b.Subscribe("bravo", "intel")
	b.Subscribe("bravo", "intel") // no-op
	assert.Equal(t, []string{"intel"}, b.Subscriptions("bravo"))

	b.Unsubscribe("bravo", "intel")
	b.Unsubscribe("bravo", "intel") // no-op
	assert.Empty(t, b.Subscriptions("bravo"))

	b.Send("alpha", "nobody", "intel", nil, nil)
	msg, err := b.Receive(context.Background(), "bravo", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestBus_HistoryNewestFirst(t *testing.T) {
	b := New()
	b.Register("alpha")

	for i := 0; i < 3; i++ {
		b.Send("alpha", "nobody", fmt.Sprintf("t%d", i), nil, nil)
	}

	history := b.History(2)
	require.Len(t, history, 2)
	assert.Equal(t, "t2", history[0].Type)
	assert.Equal(t, "t1", history[1].Type)
}

func TestBus_HistoryRecordsUndeliverable(t *testing.T) {
	b := New()

	// No agents registered at all; the message still lands in history.
	b.Send("alpha", "nobody", "orphan", nil, nil)

	history := b.History(10)
	require.Len(t, history, 1)
	assert.Equal(t, "orphan", history[0].Type)
}

func TestBus_HistoryEviction(t *testing.T) {
	b := New(func(o *Options) {
		o.HistorySize = 5
	})

	for i := 0; i < 7; i++ {
		b.Send("alpha", "nobody", fmt.Sprintf("t%d", i), nil, nil)
	}

	history := b.History(10)
	require.Len(t, history, 5)
	assert.Equal(t, "t6", history[0].Type)
	assert.Equal(t, "t2", history[4].Type)
}

func TestBus_ClearHistory(t *testing.T) {
	b := New()
	b.Send("alpha", "nobody", "t", nil, nil)
	require.NotEmpty(t, b.History(10))

	b.ClearHistory()
	assert.Empty(t, b.History(10))
}

func TestBus_Stats(t *testing.T) {
	b := New()
	b.Register("alpha")
	b.Register("bravo")
	b.Subscribe("bravo", "intel")
	b.Send("charlie", "alpha", "status", nil, nil)

	st := b.Stats()
	assert.Equal(t, 2, st.TotalAgents)
	assert.ElementsMatch(t, []string{"alpha", "bravo"}, st.RegisteredAgents)
	assert.Equal(t, 1, st.Subscriptions["intel"])
	assert.Equal(t, 1, st.HistorySize)
	assert.Equal(t, 1, st.QueueSizes["alpha"])
	assert.Equal(t, 0, st.QueueSizes["bravo"])
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()
	b.Register("alpha")

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Send("bravo", "alpha", "burst", i, nil)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		msg, err := b.Receive(context.Background(), "alpha", time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		seen[msg.Content.(int)] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestMessage_IsBroadcast(t *testing.T) {
	assert.True(t, NewMessage("a", Broadcast, "t", nil, nil).IsBroadcast())
	assert.False(t, NewMessage("a", "b", "t", nil, nil).IsBroadcast())
}

func TestMessage_TimestampAssignedOnPublish(t *testing.T) {
	b := New()
	b.Register("alpha")

	before := float64(time.Now().UnixNano()) / 1e9
	b.Publish(Message{Sender: "x", Recipient: "alpha", Type: "t"})

	msg, err := b.Receive(context.Background(), "alpha", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.GreaterOrEqual(t, msg.Timestamp, before)
	assert.NotEmpty(t, msg.ID)
}

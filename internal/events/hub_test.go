package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubFanOut(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a, err := hub.Subscribe(ctx, "auth")
	require.NoError(t, err)
	defer a.Close()
	b, err := hub.Subscribe(ctx, "auth")
	require.NoError(t, err)
	defer b.Close()
	other, err := hub.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, hub.Emit(ctx, "auth", map[string]string{"source": "main"}))

	for _, sub := range []*Subscription{a, b} {
		ev := recv(t, sub)
		assert.Equal(t, "auth", ev.Name)
		assert.JSONEq(t, `{"source":"main"}`, string(ev.Payload))
	}

	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event on other channel: %v", ev)
	default:
	}
}

func TestHubPreservesOrder(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	sub, err := hub.Subscribe(ctx, "auth")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, hub.Emit(ctx, "auth", i))
	}
	for i := 0; i < 20; i++ {
		var got int
		require.NoError(t, json.Unmarshal(recv(t, sub).Payload, &got))
		assert.Equal(t, i, got)
	}
}

func TestHubDropsOnFullQueue(t *testing.T) {
	ctx := context.Background()
	var dropped []string
	hub := NewHub(WithBuffer(1), WithDropHook(func(name string) { dropped = append(dropped, name) }))

	sub, err := hub.Subscribe(ctx, "auth")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, hub.Emit(ctx, "auth", 1))
	require.NoError(t, hub.Emit(ctx, "auth", 2))

	assert.Equal(t, uint64(1), hub.Dropped())
	assert.Equal(t, []string{"auth"}, dropped)
	assert.JSONEq(t, "1", string(recv(t, sub).Payload))
}

func TestHubCloseUnsubscribes(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	sub, err := hub.Subscribe(ctx, "auth")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("auth"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("auth"))

	_, ok := <-sub.C
	assert.False(t, ok)

	require.NoError(t, hub.Emit(ctx, "auth", 1))
}

func TestHubContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()

	sub, err := hub.Subscribe(ctx, "auth")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return hub.Subscribers("auth") == 0 }, 2*time.Second, 10*time.Millisecond)
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestHubEmitRejectsUnmarshalable(t *testing.T) {
	hub := NewHub()
	err := hub.Emit(context.Background(), "auth", make(chan int))
	assert.Error(t, err)
}

package sse

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestLocalBus_FanOut(t *testing.T) {
	bus := NewLocalBus(4)
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	require.NoError(t, bus.Publish(context.Background(), Change{Collection: CollectionSWOs, ID: "s1", Action: ActionUpdate}))

	c1 := receive(t, ch1)
	c2 := receive(t, ch2)
	assert.Equal(t, "s1", c1.ID)
	assert.Equal(t, "s1", c2.ID)
	assert.False(t, c1.At.IsZero())

	cancel1()
	cancel1()
	_, open := <-ch1
	assert.False(t, open)

	require.NoError(t, bus.Publish(context.Background(), Change{ID: "s2"}))
	assert.Equal(t, "s2", receive(t, ch2).ID)
}

func TestLocalBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewLocalBus(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), Change{ID: "1"}))
	require.NoError(t, bus.Publish(context.Background(), Change{ID: "2"}))

	assert.Equal(t, "1", receive(t, ch).ID)
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %q", c.ID)
	default:
	}
}

func TestRedisBus_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	bus := NewRedisBus(rdb, "test:changes", nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not ready")
	}

	err := bus.Publish(ctx, Change{Collection: CollectionReports, ID: "r1", Action: ActionCreate, ProjectID: "p1"})
	require.NoError(t, err)

	got := receive(t, ch)
	assert.Equal(t, CollectionReports, got.Collection)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "p1", got.ProjectID)

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

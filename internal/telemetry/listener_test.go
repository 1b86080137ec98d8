package telemetry

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("state", func(t *testing.T) {
		t.Parallel()
		store := NewStore([]string{"SQ01s"})
		err := Dispatch(store, Message{
			Agent: "SQ01s", Kind: KindState,
			X: 1, Y: 2, Z: 3, StampNanos: time.Now().UnixNano(),
		})
		require.NoError(t, err)

		snap := store.Snapshot()
		assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, snap.Poses["SQ01s"].Position)
		assert.True(t, snap.Poses["SQ01s"].Fresh())
	})

	t.Run("state with zero stamp stays stale", func(t *testing.T) {
		t.Parallel()
		store := NewStore([]string{"SQ01s"})
		require.NoError(t, Dispatch(store, Message{Agent: "SQ01s", Kind: KindState}))
		assert.False(t, store.Snapshot().Poses["SQ01s"].Fresh())
	})

	t.Run("velocity goals", func(t *testing.T) {
		t.Parallel()
		store := NewStore([]string{"SQ01s"})
		require.NoError(t, Dispatch(store, Message{Agent: "SQ01s", Kind: KindRawGoal, X: 0.5}))
		require.NoError(t, Dispatch(store, Message{Agent: "SQ01s", Kind: KindSafeGoal, Y: 0.25}))

		snap := store.Snapshot()
		assert.Equal(t, 0.5, snap.RawGoals["SQ01s"].X)
		assert.Equal(t, 0.25, snap.SafeGoals["SQ01s"].Y)
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		store := NewStore([]string{"SQ01s"})
		require.NoError(t, Dispatch(store, Message{Agent: "SQ01s", Kind: KindStatus, AvoidanceActive: true}))

		snap := store.Snapshot()
		assert.True(t, snap.Statuses["SQ01s"].AvoidanceActive)
		assert.True(t, snap.Statuses["SQ01s"].Fresh)
	})

	t.Run("assignment", func(t *testing.T) {
		t.Parallel()
		store := NewStore([]string{"SQ01s"})
		require.NoError(t, Dispatch(store, Message{Kind: KindAssignment}))
		assert.True(t, store.AssignmentReceived())
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		store := NewStore([]string{"SQ01s"})
		assert.Error(t, Dispatch(store, Message{Agent: "SQ01s", Kind: "imu"}))
	})
}

func TestListenerEndToEnd(t *testing.T) {
	t.Parallel()

	store := NewStore([]string{"SQ01s"})
	listener := NewListener(ListenerConfig{Address: "127.0.0.1:0", Store: store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- listener.Start(ctx) }()

	// Wait for the socket to come up.
	var addr net.Addr
	require.Eventually(t, func() bool {
		if listener.conn == nil {
			return false
		}
		addr = listener.conn.LocalAddr()
		return true
	}, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	payload, err := json.Marshal(Message{
		Agent: "SQ01s", Kind: KindState,
		X: 4, Y: 5, Z: 1, StampNanos: time.Now().UnixNano(),
	})
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.AllAgentsFresh()
	}, 2*time.Second, 10*time.Millisecond)

	snap := store.Snapshot()
	assert.Equal(t, Vec3{X: 4, Y: 5, Z: 1}, snap.Poses["SQ01s"].Position)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestListenerIgnoresMalformedDatagrams(t *testing.T) {
	t.Parallel()

	store := NewStore([]string{"SQ01s"})
	listener := NewListener(ListenerConfig{Address: "127.0.0.1:0", Store: store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Start(ctx)

	require.Eventually(t, func() bool { return listener.conn != nil }, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("udp", listener.conn.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Garbage first, then a valid message; the listener must survive.
	_, err = conn.Write([]byte("not json"))
	require.NoError(t, err)

	payload, _ := json.Marshal(Message{
		Agent: "SQ01s", Kind: KindState, StampNanos: time.Now().UnixNano(),
	})
	_, err = conn.Write(payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.AllAgentsFresh()
	}, 2*time.Second, 10*time.Millisecond)
}

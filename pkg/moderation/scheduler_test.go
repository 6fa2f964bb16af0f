package moderation

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduledActionFires(t *testing.T) {
	s := newScheduler()
	fired := make(chan struct{})

	s.schedule("alice", 10*time.Millisecond, func() { close(fired) })
	require.True(t, s.pending("alice"))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled action did not fire")
	}
	require.Eventually(t, func() bool { return !s.pending("alice") }, time.Second, 5*time.Millisecond)
}

func TestCancelPreventsAction(t *testing.T) {
	s := newScheduler()
	var fired int32

	s.schedule("alice", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.cancel("alice")
	require.False(t, s.pending("alice"))

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&fired))
}

func TestRescheduleReplacesPendingAction(t *testing.T) {
	s := newScheduler()
	var first, second int32

	s.schedule("alice", 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.schedule("alice", 20*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(80 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&first))
	require.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestCancelAllStopsEverything(t *testing.T) {
	s := newScheduler()
	var fired int32

	s.schedule("alice", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.schedule("bob", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.cancelAll()

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&fired))
	require.False(t, s.pending("alice"))
	require.False(t, s.pending("bob"))
}

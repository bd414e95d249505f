package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayedSchedulerFiresProcess(t *testing.T) {
	pool := NewPool(Config{Workers: 1, QueueSize: 8})
	defer pool.Stop()
	sched := NewDelayedScheduler(pool, 16)
	defer sched.Stop()

	var fired atomic.Bool
	sched.Submit(10*time.Millisecond, &DelayedTask{
		Process: func() { fired.Store(true) },
		Close:   func() { t.Error("close should not run for a task that fires normally") },
	})

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestDelayedSchedulerCancelInvokesClose(t *testing.T) {
	pool := NewPool(Config{Workers: 1, QueueSize: 8})
	defer pool.Stop()
	sched := NewDelayedScheduler(pool, 16)
	defer sched.Stop()

	var closed atomic.Bool
	handle := sched.Submit(50*time.Millisecond, &DelayedTask{
		Process: func() { t.Error("process should not run for a cancelled task") },
		Close:   func() { closed.Store(true) },
	})
	handle.Cancel()

	require.Eventually(t, closed.Load, time.Second, time.Millisecond)
}

func TestDelayedSchedulerStopDrainsWithCloseHooks(t *testing.T) {
	pool := NewPool(Config{Workers: 1, QueueSize: 8})
	defer pool.Stop()
	sched := NewDelayedScheduler(pool, 16)

	var closeCount atomic.Int32
	for i := 0; i < 5; i++ {
		sched.Submit(time.Hour, &DelayedTask{
			Process: func() { t.Error("process should not run; scheduler stops before deadline") },
			Close:   func() { closeCount.Add(1) },
		})
	}

	sched.Stop()
	require.Equal(t, int32(5), closeCount.Load())
}

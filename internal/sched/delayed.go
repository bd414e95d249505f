package sched

import (
	"container/heap"
	"sync"
	"time"
)

// DelayedTask is a deferred continuation: Process runs if the deadline
// fires normally, Close runs instead if the task is cancelled or the
// scheduler is shutting down with the task still pending. Exactly one of
// the two is ever invoked.
type DelayedTask struct {
	Process func()
	Close   func()
}

type timerEntry struct {
	deadline time.Time
	task     *DelayedTask
	index    int
	canceled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// DelayedHandle lets a caller cancel a pending deferred task before it
// fires.
type DelayedHandle struct {
	entry *timerEntry
	sched *DelayedScheduler
}

// Cancel marks the task cancelled. If the timer thread has not yet popped
// it, Close runs in place of Process at the original deadline; if it has
// already fired, Cancel is a no-op.
func (h *DelayedHandle) Cancel() {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()
	h.entry.canceled = true
}

// DelayedScheduler is a single timer goroutine driving a min-heap of
// deadline-ordered tasks, handing expired ones to a Pool for execution.
type DelayedScheduler struct {
	pool *Pool

	mu      sync.Mutex
	heap    timerHeap
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

// NewDelayedScheduler starts the timer goroutine, submitting fired tasks to
// pool.
func NewDelayedScheduler(pool *Pool, initialCapacity int) *DelayedScheduler {
	s := &DelayedScheduler{
		pool:    pool,
		heap:    make(timerHeap, 0, initialCapacity),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit places task at now+delay. Returns a handle that can cancel it
// before it fires.
func (s *DelayedScheduler) Submit(delay time.Duration, task *DelayedTask) *DelayedHandle {
	e := &timerEntry{deadline: time.Now().Add(delay), task: task}

	s.mu.Lock()
	heap.Push(&s.heap, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return &DelayedHandle{entry: e, sched: s}
}

// Stop drains the heap, invoking Close on every entry still pending
// exactly once, then stops the timer goroutine.
func (s *DelayedScheduler) Stop() {
	close(s.stop)
	<-s.stopped
}

func (s *DelayedScheduler) run() {
	defer close(s.stopped)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var nextWait time.Duration
		if len(s.heap) == 0 {
			nextWait = time.Hour
		} else {
			nextWait = time.Until(s.heap[0].deadline)
			if nextWait < 0 {
				nextWait = 0
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(nextWait)

		select {
		case <-s.stop:
			s.drainAll()
			return
		case <-s.wake:
			continue
		case <-timer.C:
			s.fireExpired()
		}
	}
}

func (s *DelayedScheduler) fireExpired() {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].deadline.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(*timerEntry)
		canceled := e.canceled
		s.mu.Unlock()

		s.dispatch(e, canceled)
	}
}

func (s *DelayedScheduler) drainAll() {
	s.mu.Lock()
	pending := make([]*timerEntry, len(s.heap))
	copy(pending, s.heap)
	s.heap = s.heap[:0]
	s.mu.Unlock()

	for _, e := range pending {
		s.dispatch(e, true)
	}
}

func (s *DelayedScheduler) dispatch(e *timerEntry, canceled bool) {
	if canceled {
		if e.task.Close != nil {
			e.task.Close()
		}
		return
	}
	if s.pool == nil {
		e.task.Process()
		return
	}
	if err := s.pool.Submit(&Task{Run: e.task.Process}); err != nil {
		if e.task.Close != nil {
			e.task.Close()
		}
	}
}

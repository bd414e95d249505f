// Package sched provides the engine's fixed worker pool and its delayed
// (deadline-based) task scheduler.
package sched

import (
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/gonetstack/internal/interfaces"
	"github.com/ehrlich-b/gonetstack/internal/queue"
)

func taskToPtr(t *Task) unsafe.Pointer { return unsafe.Pointer(t) }
func ptrToTask(p unsafe.Pointer) *Task { return (*Task)(p) }

// ErrQueueFull is returned by Submit when the task queue is saturated; the
// caller must drop the in-flight work it was about to hand off and release
// any buffer it owns.
type ErrQueueFull struct{}

func (ErrQueueFull) Error() string { return "sched: task queue full" }

// Task is a one-shot unit of work. The worker that dequeues it owns
// whatever state Run closes over until Run returns.
type Task struct {
	Run func()
}

// Pool is a fixed set of worker goroutines draining a bounded task queue
// through a counting semaphore, the same shape as a ublk queue runner's
// ioLoop but generalized to arbitrary one-shot tasks instead of io_uring
// completions.
type Pool struct {
	tasks       *queue.BdQueue
	sem         chan struct{}
	stop        chan struct{}
	wg          sync.WaitGroup
	logger      interfaces.Logger
	cpuAffinity []int
}

// Config configures a Pool.
type Config struct {
	Workers     int
	QueueSize   int
	Logger      interfaces.Logger
	CPUAffinity []int // optional, round-robin assigned across workers
}

// NewPool creates and starts a pool of Config.Workers goroutines.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	p := &Pool{
		tasks:       queue.NewBdQueue(cfg.QueueSize),
		sem:         make(chan struct{}, cfg.QueueSize),
		stop:        make(chan struct{}),
		logger:      cfg.Logger,
		cpuAffinity: cfg.CPUAffinity,
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}
	return p
}

// Submit enqueues task for execution by some worker and posts the
// semaphore once. Returns ErrQueueFull on overflow.
func (p *Pool) Submit(task *Task) error {
	if !p.tasks.Enqueue(taskToPtr(task)) {
		return ErrQueueFull{}
	}
	select {
	case p.sem <- struct{}{}:
	default:
		// A worker is already awake and will find this task via its next
		// non-blocking dequeue attempt; the semaphore only needs to wake
		// at least one idle worker, not count exactly.
	}
	return nil
}

// Stop signals every worker to exit once its current task (if any)
// finishes, and waits for them to drain.
func (p *Pool) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(p.cpuAffinity) > 0 {
		cpu := p.cpuAffinity[id%len(p.cpuAffinity)]
		var mask unix.CPUSet
		mask.Set(cpu)
		if err := unix.SchedSetaffinity(0, &mask); err != nil && p.logger != nil {
			p.logger.Printf("sched: worker %d: failed to pin to CPU %d: %v", id, cpu, err)
		}
	}

	for {
		if elem, ok := p.tasks.Dequeue(); ok {
			task := ptrToTask(elem)
			task.Run()
			continue
		}

		select {
		case <-p.stop:
			return
		case <-p.sem:
			// woken by a submitter; loop back and try the dequeue again
		}
	}
}

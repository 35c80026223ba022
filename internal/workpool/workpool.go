// ============================================================================
// WorkPool - Admission-Capped Worker Pool over AsyncResult
// ============================================================================
//
// Package: internal/workpool
// File: workpool.go
// Function: Owns an unbounded dispatch queue and a resizable set of worker
//           goroutines that drive submitted tasks through AsyncResult,
//           admitting submissions up to a live-job cap.
//
// Design Pattern:
//   1. Tracks every live (non-terminal) job by ID for cancel_all/
//      wait-for-quiescence.
//   2. Admission-caps Submit against the live-job count, not against
//      queue capacity: a job already dequeued and running still counts
//      against MaxQueue until it reaches a terminal state.
//   3. Resizes its worker count at runtime via AddWorkers/ReduceWorkers.
//
// Architecture:
//   Submit()  --enqueue-->  queue (unbounded dispatchQueue)
//                                │
//                    ┌───────────┼───────────┐
//                    ▼           ▼           ▼
//                 worker 1    worker 2    worker N  --ar.Execute(ctx)-->
//                                                       AddAll callback
//                                                       --> completeJob
//                                                           (jobs map,
//                                                            metrics)
//
// Concurrency Control:
//   - mu guards running, workerCount, epoch and the jobs map.
//   - cond is broadcast whenever the jobs map empties and when Stop
//     completes, and polled (with a
//     deadline timer) by Wait — the same pattern asyncresult.AsyncResult
//     uses for its own Wait.
//   - CancelAll and Stop/JoinAndInterruptAll snapshot what they need
//     under mu and then act outside it: an AsyncResult's terminal
//     callback (completeJob) locks mu itself, so calling into an
//     AsyncResult while already holding mu would deadlock.
//
// ============================================================================

package workpool

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kellanburke/taskpool/internal/metrics"
	"github.com/kellanburke/taskpool/internal/threadgroup"
	"github.com/kellanburke/taskpool/pkg/asyncresult"
)

var log = slog.Default()

// ============================================================================
// Error Definitions
// ============================================================================

var (
	// ErrPoolFull indicates the live-job count was already at MaxQueue
	// at Submit time. The caller should back off rather than retry
	// immediately.
	ErrPoolFull = errors.New("workpool: queue full")

	// ErrNotRunning indicates an operation that requires a running pool
	// was attempted before Run or after Stop.
	ErrNotRunning = errors.New("workpool: pool not running")

	// ErrAlreadyRunning indicates Run was called on a pool already running.
	ErrAlreadyRunning = errors.New("workpool: pool already running")

	// ErrInvalidArgument indicates a resize request was non-positive, or
	// a ReduceWorkers request asked for more workers than are running.
	ErrInvalidArgument = errors.New("workpool: invalid argument")
)

// ============================================================================
// Configuration
// ============================================================================

// Config bounds a WorkPool's shape at construction.
type Config struct {
	// Workers is the number of worker goroutines Run starts.
	Workers int
	// MaxQueue bounds the number of live (non-terminal) jobs the pool
	// will track before Submit returns ErrPoolFull. A job counts as
	// live from the moment Submit admits it until it reaches a
	// terminal status — a job already dequeued and running still
	// counts against this limit. Zero means unbounded.
	MaxQueue int
}

// ============================================================================
// WorkPool
// ============================================================================

// WorkPool is a resizable worker pool driving asyncresult.Task values
// through asyncresult.AsyncResult handles, admitting submissions up to
// a live-job cap.
type WorkPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	running     bool
	workerCount int
	maxQueue    int
	epoch       uint64
	nextJobID   uint32

	queue   *dispatchQueue
	threads *threadgroup.Group
	jobs    map[uint64]*asyncresult.AsyncResult

	metrics *metrics.Metrics
}

// New constructs a WorkPool in the not-running state. m may be nil, in
// which case all metrics observations are no-ops.
func New(cfg Config, m *metrics.Metrics) *WorkPool {
	if cfg.Workers <= 0 {
		panic("workpool: Config.Workers must be positive")
	}
	if cfg.MaxQueue < 0 {
		panic("workpool: Config.MaxQueue must not be negative")
	}
	wp := &WorkPool{
		workerCount: cfg.Workers,
		maxQueue:    cfg.MaxQueue,
		queue:       newDispatchQueue(),
		threads:     threadgroup.New(),
		jobs:        make(map[uint64]*asyncresult.AsyncResult),
		metrics:     m,
	}
	wp.cond = sync.NewCond(&wp.mu)
	return wp
}

func (wp *WorkPool) currentEpoch() uint64 {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.epoch
}

// ============================================================================
// Lifecycle
// ============================================================================

// Run starts the configured number of worker goroutines. Returns
// ErrAlreadyRunning if called twice without an intervening Stop.
func (wp *WorkPool) Run() error {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return ErrAlreadyRunning
	}
	wp.running = true
	wp.epoch++
	n := wp.workerCount
	wp.mu.Unlock()

	for i := 0; i < n; i++ {
		wp.threads.Create(wp.workerLoop)
	}
	wp.metrics.SetWorkers(n)
	log.Info("pool started", "workers", n, "max_queue", wp.maxQueue)
	return nil
}

// Stop retires every worker and waits up to timeout (per worker) for it
// to drain its in-flight item before cancelling its context outright.
// It is a no-op, returning ErrNotRunning, if the pool is not running.
//
// One poison pill per worker is enqueued so that a worker idle on the
// queue wakes up and exits promptly rather than waiting to be
// interrupted; a worker already mid-Execute on a task instead drains
// that task to completion (or to ErrInterrupted, once its context is
// cancelled at the grace-period deadline) before seeing its pill.
func (wp *WorkPool) Stop(timeout time.Duration) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return ErrNotRunning
	}
	wp.running = false
	n := wp.workerCount
	epoch := wp.epoch
	wp.mu.Unlock()

	log.Info("pool stopping", "workers", n, "timeout", timeout)
	for i := 0; i < n; i++ {
		wp.queue.push(poisonPill{epoch: epoch})
	}

	// threads.JoinAndInterruptAll blocks; it is called with mu released
	// so a completeJob callback firing concurrently (from a task that
	// finishes during the grace period) can still take mu.
	wp.threads.JoinAndInterruptAll(timeout)
	wp.cond.Broadcast()
	wp.metrics.SetWorkers(0)
	log.Info("pool stopped")
	return nil
}

// ============================================================================
// Submit
// ============================================================================

// Submit admits task into the pool and registers callback (if non-nil)
// against the resulting handle's ALL category. It returns the handle
// the caller uses to observe completion, ErrPoolFull if the pool
// already tracked MaxQueue live jobs (MaxQueue == 0 means unbounded),
// or ErrNotRunning if the pool isn't running.
func (wp *WorkPool) Submit(task asyncresult.Task, callback asyncresult.Callback) (*asyncresult.AsyncResult, error) {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil, ErrNotRunning
	}
	if wp.maxQueue > 0 && len(wp.jobs) >= wp.maxQueue {
		wp.mu.Unlock()
		return nil, ErrPoolFull
	}

	id := uint64(wp.nextJobID)
	wp.nextJobID++

	ar := asyncresult.New(task)
	if callback != nil {
		ar.AddAll(callback)
	}
	created := time.Now()
	ar.AddAll(func(ar *asyncresult.AsyncResult) {
		wp.completeJob(id, ar, created)
	})

	wp.jobs[id] = ar
	live := len(wp.jobs)
	wp.mu.Unlock()

	wp.metrics.SetJobsLive(live)
	wp.metrics.ObserveSubmit()

	wp.queue.push(executeItem{id: id, ar: ar})
	return ar, nil
}

// completeJob removes id from the live-job set and reports its terminal
// category and duration to metrics. Registered as every submitted
// handle's ALL callback, so it runs exactly once per job regardless of
// which terminal state it reached.
func (wp *WorkPool) completeJob(id uint64, ar *asyncresult.AsyncResult, created time.Time) {
	duration := time.Since(created)
	category := asyncresult.CategoryOf(ar.Status())

	wp.mu.Lock()
	delete(wp.jobs, id)
	live := len(wp.jobs)
	if live == 0 {
		wp.cond.Broadcast()
	}
	wp.mu.Unlock()

	wp.metrics.SetJobsLive(live)
	wp.metrics.ObserveTerminal(category, duration)
}

// ============================================================================
// CancelAll / Wait
// ============================================================================

// CancelAll calls Cancel on every job currently tracked by the pool. A
// job already RUNNING or terminal is unaffected, per AsyncResult.Cancel.
func (wp *WorkPool) CancelAll() {
	wp.mu.Lock()
	ars := make([]*asyncresult.AsyncResult, 0, len(wp.jobs))
	for _, ar := range wp.jobs {
		ars = append(ars, ar)
	}
	wp.mu.Unlock()

	for _, ar := range ars {
		ar.Cancel()
	}
}

// Wait blocks until the pool holds no live jobs or timeout elapses,
// whichever comes first. A timeout of zero waits unbounded. Returns
// true iff the pool was observed quiescent.
func (wp *WorkPool) Wait(timeout time.Duration) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	hasDeadline := timeout > 0
	deadline := time.Now().Add(timeout)

	var timer *time.Timer
	if hasDeadline {
		timer = time.AfterFunc(timeout, wp.cond.Broadcast)
		defer timer.Stop()
	}

	for {
		if len(wp.jobs) == 0 {
			return true
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return false
		}
		wp.cond.Wait()
	}
}

// ============================================================================
// Dynamic Resize
// ============================================================================

// AddWorkers starts n additional worker goroutines. Returns
// ErrNotRunning if the pool isn't running, or ErrInvalidArgument if n
// isn't positive.
func (wp *WorkPool) AddWorkers(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return ErrNotRunning
	}
	wp.workerCount += n
	count := wp.workerCount
	wp.mu.Unlock()

	for i := 0; i < n; i++ {
		wp.threads.Create(wp.workerLoop)
	}
	wp.metrics.SetWorkers(count)
	log.Info("pool resized", "added", n, "workers", count)
	return nil
}

// ReduceWorkers retires n running workers by enqueuing n poison pills
// stamped with the current run's epoch. A worker idle on the queue
// exits as soon as it dequeues one; a worker mid-task exits once it
// finishes and loops back to dequeue. Returns ErrNotRunning if the pool
// isn't running, or ErrInvalidArgument if n isn't positive or exceeds
// the current worker count.
func (wp *WorkPool) ReduceWorkers(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return ErrNotRunning
	}
	if n > wp.workerCount {
		wp.mu.Unlock()
		return ErrInvalidArgument
	}
	epoch := wp.epoch
	wp.workerCount -= n
	count := wp.workerCount
	wp.mu.Unlock()

	for i := 0; i < n; i++ {
		wp.queue.push(poisonPill{epoch: epoch})
	}
	wp.metrics.SetWorkers(count)
	log.Info("pool resized", "removed", n, "workers", count)
	return nil
}

// WorkerCount returns the pool's current target worker count.
func (wp *WorkPool) WorkerCount() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.workerCount
}

// IsRunning reports whether the pool has been started and not yet
// stopped.
func (wp *WorkPool) IsRunning() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.running
}

package workpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellanburke/taskpool/internal/metrics"
	"github.com/kellanburke/taskpool/pkg/asyncresult"
)

func newTestPool(workers, maxQueue int) *WorkPool {
	return New(Config{Workers: workers, MaxQueue: maxQueue}, metrics.New())
}

func TestSubmitBeforeRunFails(t *testing.T) {
	wp := newTestPool(1, 4)
	_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestRunTwiceFails(t *testing.T) {
	wp := newTestPool(1, 4)
	require.NoError(t, wp.Run())
	assert.ErrorIs(t, wp.Run(), ErrAlreadyRunning)
	require.NoError(t, wp.Stop(time.Second))
}

// TestHappyDispatch verifies every submitted task runs and each reaches
// SUCCESS.
func TestHappyDispatch(t *testing.T) {
	wp := newTestPool(2, 8)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)

	var n int32
	var ars []*asyncresult.AsyncResult
	for i := 0; i < 5; i++ {
		ar, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
			atomic.AddInt32(&n, 1)
			return nil
		}, nil)
		require.NoError(t, err)
		ars = append(ars, ar)
	}

	require.True(t, wp.Wait(time.Second))
	assert.EqualValues(t, 5, atomic.LoadInt32(&n))
	for _, ar := range ars {
		assert.Equal(t, asyncresult.StatusSuccess, ar.Status())
	}
}

// TestSubmitRegistersUserCallback verifies the callback passed to Submit
// is registered against the handle's ALL category.
func TestSubmitRegistersUserCallback(t *testing.T) {
	wp := newTestPool(1, 4)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)

	done := make(chan asyncresult.Status, 1)
	_, err := wp.Submit(
		func(ctx context.Context, ar *asyncresult.AsyncResult) error { return nil },
		func(ar *asyncresult.AsyncResult) { done <- ar.Status() },
	)
	require.NoError(t, err)

	select {
	case status := <-done:
		assert.Equal(t, asyncresult.StatusSuccess, status)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

// TestAdmissionCapGatesOnLiveJobs verifies admission is rejected once the
// pool already tracks MaxQueue live jobs — including jobs already
// dequeued and RUNNING on a worker, not merely jobs still sitting in the
// dispatch queue. With four workers free to dequeue both blocking tasks
// immediately, a queue-capacity-based gate would wrongly admit a third
// submission; a live-job-based gate does not.
func TestAdmissionCapGatesOnLiveJobs(t *testing.T) {
	wp := newTestPool(4, 2)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)

	started := make(chan struct{}, 2)
	block := make(chan struct{})
	defer close(block)

	for i := 0; i < 2; i++ {
		_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
			started <- struct{}{}
			<-block
			return nil
		}, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		<-started
	}

	_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrPoolFull)
}

// TestZeroMaxQueueIsUnbounded verifies MaxQueue == 0 admits submissions
// without bound.
func TestZeroMaxQueueIsUnbounded(t *testing.T) {
	wp := newTestPool(2, 0)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)

	block := make(chan struct{})
	defer close(block)

	const n = 50
	for i := 0; i < n; i++ {
		_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
			<-block
			return nil
		}, nil)
		require.NoError(t, err)
	}
}

// TestCancelAll covers the cancel-before-execute path for still-queued
// jobs: a job that never got a worker is cancelled rather than run.
func TestCancelAll(t *testing.T) {
	wp := newTestPool(1, 8)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)

	block := make(chan struct{})

	_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		<-block
		return nil
	}, nil)
	require.NoError(t, err)

	var ran int32
	ars := make([]*asyncresult.AsyncResult, 0, 4)
	for i := 0; i < 4; i++ {
		ar, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}, nil)
		require.NoError(t, err)
		ars = append(ars, ar)
	}

	wp.CancelAll()
	close(block)

	require.True(t, wp.Wait(time.Second))
	for _, ar := range ars {
		assert.Equal(t, asyncresult.StatusCancelled, ar.Status())
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(&ran))
}

// TestStopDrainsInFlight verifies Stop waits for an in-flight task to
// finish within its grace period rather than abandoning it.
func TestStopDrainsInFlight(t *testing.T) {
	wp := newTestPool(1, 4)
	require.NoError(t, wp.Run())

	var finished int32
	ar, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&finished, 1)
		return nil
	}, nil)
	require.NoError(t, err)

	require.NoError(t, wp.Stop(time.Second))
	assert.EqualValues(t, 1, atomic.LoadInt32(&finished))
	assert.Equal(t, asyncresult.StatusSuccess, ar.Status())
}

// TestStopInterruptsPastDeadline verifies a task still running past
// Stop's grace period observes interruption via ctx.
func TestStopInterruptsPastDeadline(t *testing.T) {
	wp := newTestPool(1, 4)
	require.NoError(t, wp.Run())

	ar, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		<-ctx.Done()
		return asyncresult.ErrInterrupted
	}, nil)
	require.NoError(t, err)

	require.NoError(t, wp.Stop(20*time.Millisecond))
	assert.Equal(t, asyncresult.StatusInterrupted, ar.Status())
}

func TestAddAndReduceWorkers(t *testing.T) {
	wp := newTestPool(2, 16)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)

	require.NoError(t, wp.AddWorkers(2))
	assert.Equal(t, 4, wp.WorkerCount())

	require.NoError(t, wp.ReduceWorkers(3))
	assert.Equal(t, 1, wp.WorkerCount())

	// The pool still dispatches with its reduced worker count.
	var n int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
			defer wg.Done()
			atomic.AddInt32(&n, 1)
			return nil
		}, nil)
		require.NoError(t, err)
	}
	wg.Wait()
	assert.EqualValues(t, 3, atomic.LoadInt32(&n))
}

func TestReduceWorkersRejectsOversizedRequest(t *testing.T) {
	wp := newTestPool(2, 4)
	require.NoError(t, wp.Run())
	defer wp.Stop(time.Second)
	assert.ErrorIs(t, wp.ReduceWorkers(3), ErrInvalidArgument)
}

func TestWaitTimeoutWhileBusy(t *testing.T) {
	wp := newTestPool(1, 4)
	require.NoError(t, wp.Run())

	block := make(chan struct{})
	_, err := wp.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		<-block
		return nil
	}, nil)
	require.NoError(t, err)

	assert.False(t, wp.Wait(20*time.Millisecond))
	close(block)
	require.NoError(t, wp.Stop(time.Second))
}

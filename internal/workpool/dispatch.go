// Package workpool implements WorkPool, a fixed-then-resizable set of
// worker goroutines that execute asyncresult.AsyncResult handles pulled
// from an unbounded dispatch queue.
//
// File: dispatch.go
// Function: the sum type carried on the dispatch queue, and the queue
// itself. Admission control lives in WorkPool.Submit against the live-
// job map, not against queue capacity, so the queue must be able to
// hold every admitted job even when MaxQueue is configured as unbounded
// (zero) — a fixed-capacity channel cannot represent that, so this is a
// condition-variable-guarded FIFO instead.
package workpool

import (
	"context"
	"sync"

	"github.com/kellanburke/taskpool/pkg/asyncresult"
)

// dispatchItem is whatever a worker pulls off the queue: either a handle
// to execute, or a poison pill telling the worker receiving it to exit.
// Go has no tagged union, so this is the usual closed-interface
// encoding — only this package's two types implement it.
type dispatchItem interface {
	dispatchItem()
}

// executeItem carries one submitted job to whichever worker dequeues it.
type executeItem struct {
	id uint64
	ar *asyncresult.AsyncResult
}

func (executeItem) dispatchItem() {}

// poisonPill tells the worker that dequeues it to exit, rather than
// executing anything. epoch identifies the run (Run increments it) in
// which the pill was sent: a worker only honors a pill whose epoch
// matches the pool's current epoch at the moment of receipt. A pill that
// outlives its run — queued before a Stop and still on the queue after
// the next Run — is stale and is dropped instead of retiring a worker
// nobody asked to retire.
type poisonPill struct {
	epoch uint64
}

func (poisonPill) dispatchItem() {}

// dispatchQueue is an unbounded FIFO of dispatchItems, guarded by a
// mutex and condition variable — the same waiting idiom
// asyncresult.AsyncResult.Wait and WorkPool.Wait use for their own
// deadline-bounded waits. push never blocks or fails.
type dispatchQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []dispatchItem
}

func newDispatchQueue() *dispatchQueue {
	q := &dispatchQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends item to the tail of the queue and wakes one waiting pop.
func (q *dispatchQueue) push(item dispatchItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an item is available or ctx is cancelled, whichever
// comes first. Returns false if ctx was cancelled before an item
// arrived.
func (q *dispatchQueue) pop(ctx context.Context) (dispatchItem, bool) {
	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			return item, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
}

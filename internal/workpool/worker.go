// File: worker.go
// Function: the loop each pool worker goroutine runs, dequeuing
// dispatchItems until it is cancelled or retired by a matching pill.
package workpool

import (
	"context"
	"errors"

	"github.com/kellanburke/taskpool/pkg/asyncresult"
)

// workerLoop pulls items from the pool's dispatch queue until ctx is
// cancelled (Stop/JoinAndInterruptAll) or it dequeues a poison pill
// addressed to its generation. An interrupted task also ends the loop:
// a worker whose in-flight task unwound via ErrInterrupted is assumed
// to be reacting to the same shutdown that cancelled ctx, so it exits
// rather than looping back for another item on a queue that is
// draining. A recovered panic also ends the loop, after logging it,
// rather than crashing the process.
func (wp *WorkPool) workerLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panic", "recovered", r)
		}
	}()

	log.Debug("worker started")
	for {
		item, ok := wp.queue.pop(ctx)
		if !ok {
			log.Debug("worker exiting", "reason", "context done")
			return
		}
		switch it := item.(type) {
		case executeItem:
			fired, err := it.ar.Execute(ctx)
			if fired && errors.Is(err, asyncresult.ErrInterrupted) {
				log.Debug("worker exiting", "reason", "task interrupted")
				return
			}
		case poisonPill:
			if it.epoch == wp.currentEpoch() {
				log.Debug("worker exiting", "reason", "poison pill", "epoch", it.epoch)
				return
			}
			// Stale pill from a superseded resize; keep looping.
		}
	}
}

// Package dispatcher owns the bounded in-process FIFO queue of node ids and
// the worker pool that drains it, running the node-expansion pipeline for
// each id. A single consumer goroutine owns the queue; a semaphore bounds
// how many workers run the pipeline at once. A worker gives its semaphore
// slot back as soon as its pipeline run returns, before it pushes child ids,
// so a worker blocked on a full queue never holds a slot the consumer is
// waiting for, and the consumer keeps receiving from the queue while workers
// run: a full queue and the consumer can never deadlock against each other.
// The run terminates once the queue is empty and no worker is in flight.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
	"github.com/aaweaver-actuary/repgrow/internal/logging"
	"github.com/aaweaver-actuary/repgrow/internal/pipeline"
)

// Config configures the dispatcher's concurrency and optional global cap.
type Config struct {
	// Concurrency bounds the number of worker goroutines running the
	// pipeline simultaneously.
	Concurrency int
	// MaxTotalNodes, when > 0, is a hard cap on arena size: once reached,
	// Expand appends no further nodes for the remainder of the run (workers
	// still run plan, fetch and select).
	MaxTotalNodes int64
}

// Result aggregates dispatcher-level statistics for logging/metrics.
type Result struct {
	NodesPlanned int64
	FatalErr     error
}

// Dispatcher drains a FIFO queue of node ids, running the pipeline for each
// with bounded concurrency, until the queue is empty and every worker is
// idle.
type Dispatcher struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	logger   *logging.Logger

	totalNodes atomic.Int64
}

// New constructs a Dispatcher. If cfg.Concurrency <= 0 it is clamped to 1.
func New(cfg Config, p *pipeline.Pipeline, logger *logging.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{cfg: cfg, pipeline: p, logger: logger}
}

// Run seeds the queue with rootID and drains it to completion, spawning a
// bounded pool of workers that run the pipeline per node id. Returns once
// the queue is empty and every worker has finished, or ctx is cancelled.
// Result.FatalErr holds the first error engineerr.IsFatal treats as fatal
// (ArenaCorruption, QueueBroken, ConfigInvalid, or an error that is not an
// *engineerr.Error), or ctx.Err() when ctx is cancelled and no fatal error
// was recorded; non-fatal pipeline errors are logged and dropped here.
//
// The queue's capacity is just an efficiency hint, not a correctness
// requirement: a node can legally fan out to more children than the queue
// holds at once (see Config.Concurrency), and a worker pushing a child blocks
// until the consumer makes room. Workers release their semaphore slot before
// pushing, and the consumer loop below keeps a pending receive on the queue
// itself, so it can drain a full queue and unblock a waiting worker even
// while other workers are still running.
func (d *Dispatcher) Run(ctx context.Context, rootID uint64) Result {
	d.totalNodes.Store(int64(1)) // the root itself counts toward the cap

	queueCap := 4 * d.cfg.Concurrency
	queue := make(chan uint64, queueCap)
	queue <- rootID

	sem := make(chan struct{}, d.cfg.Concurrency)
	// workerDone wakes the consumer when a worker finishes so it can
	// re-check the termination condition; a best-effort, non-blocking
	// signal is enough since the consumer also re-checks after every
	// queue receive.
	workerDone := make(chan struct{}, queueCap)

	var active atomic.Int64
	var wg sync.WaitGroup
	var planned atomic.Int64

	var fatalMu sync.Mutex
	var fatalErr error
	recordFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
	}

	remaining := func() bool {
		if d.cfg.MaxTotalNodes <= 0 {
			return true
		}
		// Reserve a slot atomically: only the caller that pushes the
		// counter at-or-under the cap is allowed to append.
		for {
			cur := d.totalNodes.Load()
			if cur >= d.cfg.MaxTotalNodes {
				return false
			}
			if d.totalNodes.CompareAndSwap(cur, cur+1) {
				return true
			}
		}
	}

	dispatch := func(nodeID uint64) {
		active.Add(1)
		wg.Add(1)
		go func(id uint64) {
			defer func() {
				wg.Done()
				active.Add(-1)
				select {
				case workerDone <- struct{}{}:
				default:
				}
			}()

			planned.Add(1)
			children, err := d.pipeline.Run(ctx, id, remaining)
			// Free the slot before the child pushes below, which may block
			// on a full queue until the consumer dispatches more work.
			<-sem
			if err != nil {
				if engineerr.IsFatal(err) {
					d.logger.Error("fatal pipeline error", map[string]any{"node_id": id, "error": err.Error()})
					recordFatal(err)
					return
				}
				d.logger.Warn("pipeline error swallowed at dispatcher boundary", map[string]any{"node_id": id, "error": err.Error()})
				return
			}
			for _, childID := range children {
				select {
				case queue <- childID:
				case <-ctx.Done():
					return
				}
			}
		}(nodeID)
	}

	acquire := func(id uint64) bool {
		select {
		case sem <- struct{}{}:
			dispatch(id)
			return true
		case <-ctx.Done():
			return false
		}
	}

	// finish waits for every dispatched worker to return. Safe to block on
	// here: by the time it's called either the queue is confirmed drained
	// with no worker in flight, or ctx is already cancelled, in which case
	// every worker's pending queue push also selects on ctx.Done() and will
	// return promptly.
	finish := func() Result {
		wg.Wait()
		return Result{NodesPlanned: planned.Load(), FatalErr: fatalErrOrCtx(fatalErr, ctx)}
	}

	for {
		// Drain whatever is queued right now, non-blocking.
		for drained := false; !drained; {
			select {
			case id := <-queue:
				if !acquire(id) {
					return finish()
				}
			default:
				drained = true
			}
		}

		// Queue is empty. If no worker is in flight, nothing remains that
		// could enqueue more work, so the run is complete.
		if active.Load() == 0 && len(queue) == 0 {
			return Result{NodesPlanned: planned.Load(), FatalErr: fatalErr}
		}

		// A worker is still running and may need to push a child into a
		// full queue; keep a receive on the queue pending so that push can
		// never block forever, instead of parking on worker completion
		// alone.
		select {
		case id := <-queue:
			if !acquire(id) {
				return finish()
			}
		case <-workerDone:
			// A worker finished; loop around to re-drain and re-check.
		case <-ctx.Done():
			return finish()
		}
	}
}

func fatalErrOrCtx(fatalErr error, ctx context.Context) error {
	if fatalErr != nil {
		return fatalErr
	}
	return ctx.Err()
}

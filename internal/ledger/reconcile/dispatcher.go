package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"ballotguard/internal/ledger/metrics"
	"ballotguard/internal/vote"
)

// Dispatcher anchors committed votes on a bounded pool of workers. A full
// queue rejects the vote; it stays unconfirmed and the Reconciler picks it up.
type Dispatcher struct {
	anchorer Anchorer
	queue    chan *vote.Vote
	workers  int
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	stopCtx context.CancelFunc
}

func NewDispatcher(anchorer Anchorer, workers, queueSize int, opts ...Option) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	o := buildOptions(opts)
	return &Dispatcher{
		anchorer: anchorer,
		queue:    make(chan *vote.Vote, queueSize),
		workers:  workers,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Start launches the workers. They anchor with a context detached from
// request cancellation and stop when ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.stopCtx = cancel
	for range d.workers {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Submit enqueues v without blocking and reports whether it was accepted.
func (d *Dispatcher) Submit(v *vote.Vote) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- v:
		d.metrics.SetQueueDepth(len(d.queue))
		return true
	default:
		d.metrics.IncrementOverflow()
		d.logger.Warn("ledger dispatch queue full, leaving vote to reconciliation", "vote_id", v.ID.String())
		return false
	}
}

// Close stops accepting votes, drains the queue and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	if d.stopCtx != nil {
		d.stopCtx()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-d.queue:
			if !ok {
				return
			}
			d.metrics.SetQueueDepth(len(d.queue))
			result := d.anchorer.AnchorVote(ctx, v)
			if result.Err != nil {
				d.logger.DebugContext(ctx, "async anchor left vote unconfirmed", "vote_id", v.ID.String())
			}
		}
	}
}

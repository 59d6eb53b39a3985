package detect

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

// Watcher re-runs detection on a fixed interval. Backpressure is by drop:
// a tick that fires while the previous cycle is still running is skipped,
// so degraded sensor latency never queues up scans.
type Watcher struct {
	orch     *Orchestrator
	interval time.Duration

	busy    atomic.Bool
	skipped atomic.Int64
}

// NewWatcher wraps an orchestrator for continuous mode.
func NewWatcher(orch *Orchestrator, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{orch: orch, interval: interval}
}

// Skipped reports how many ticks were dropped because a cycle was in flight.
func (w *Watcher) Skipped() int64 {
	return w.skipped.Load()
}

// Run detects immediately, then on every interval tick, delivering each
// result to fn. Cycles run off the tick loop so a slow provider delays
// nothing; the tick that would overlap it is dropped instead. Run blocks
// until ctx is cancelled and returns ctx.Err() once the in-flight cycle,
// if any, has finished.
func (w *Watcher) Run(ctx context.Context, fn func(*model.DetectionResult)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	start := func() {
		if !w.busy.CompareAndSwap(false, true) {
			n := w.skipped.Add(1)
			zap.L().Debug("detection cycle still running, tick dropped",
				zap.Int64("skipped_total", n))
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer w.busy.Store(false)
			w.cycle(ctx, fn)
		}()
	}

	start()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			start()
		}
	}
}

func (w *Watcher) cycle(ctx context.Context, fn func(*model.DetectionResult)) {
	result, err := w.orch.Detect(ctx)
	if err != nil {
		// Only the caller's own cancellation reaches here; the aborted
		// cycle has already returned the confirmation machine to idle.
		return
	}
	if fn != nil {
		fn(result)
	}
}

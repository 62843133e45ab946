package batch

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/plan"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/probe"
)

// #endregion

// #region types

// DefaultConcurrency is how many analyses run at once unless configured otherwise.
const DefaultConcurrency = 3

// Item is one slot of a batch outcome. Err is set when that request failed;
// the rest of the batch is unaffected.
type Item struct {
	Result analysis.Result
	Err    error
}

// Progress reports one completed item. Callbacks run serialized, in
// completion order, and must return promptly.
type Progress struct {
	Index     int
	Total     int
	Completed int
	RequestID string
	Err       error
}

// Executor runs a single request against a plan. *orchestrator.Orchestrator
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, req analysis.Request, p plan.Plan) (analysis.Result, error)
}

// Planner turns a device context into a provider chain. *plan.Selector
// satisfies it.
type Planner interface {
	Select(pc probe.Context) plan.Plan
}

// #endregion

// #region coordinator

// Coordinator fans a batch out over a bounded worker pool while keeping
// results in request order.
type Coordinator struct {
	exec        Executor
	planner     Planner
	concurrency int
}

// NewCoordinator wires a batch coordinator. concurrency <= 0 selects the default.
func NewCoordinator(exec Executor, planner Planner, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{exec: exec, planner: planner, concurrency: concurrency}
}

// Run analyzes all requests under one shared context snapshot. Every item gets
// its own plan so per-request preferences still apply, but the device state is
// probed exactly once for the whole batch. The returned slice always has
// len(reqs) entries; cancellation leaves completed work in place and marks
// unstarted items with ErrCancelled.
func (c *Coordinator) Run(ctx context.Context, reqs []analysis.Request, snap probe.Context, onProgress func(Progress)) []Item {
	out := make([]Item, len(reqs))
	if len(reqs) == 0 {
		return out
	}
	log.Printf("[batch] running %d requests, concurrency %d", len(reqs), c.concurrency)

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

admit:
	for i := range reqs {
		select {
		case <-ctx.Done():
			for j := i; j < len(reqs); j++ {
				out[j] = Item{Err: fmt.Errorf("%w: batch aborted before start", analysis.ErrCancelled)}
			}
			break admit
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, req analysis.Request) {
			defer wg.Done()
			defer func() { <-sem }()

			itemSnap := snap
			itemSnap.Pref = analysis.NormalizePref(req.Pref)
			p := c.planner.Select(itemSnap)

			res, err := c.exec.Execute(ctx, req, p)
			out[i] = Item{Result: res, Err: err}

			mu.Lock()
			completed++
			if onProgress != nil {
				onProgress(Progress{
					Index:     i,
					Total:     len(reqs),
					Completed: completed,
					RequestID: req.ID,
					Err:       err,
				})
			}
			mu.Unlock()
		}(i, reqs[i])
	}

	wg.Wait()
	return out
}

// #endregion

// #region summary

// Failed counts the items that carry an error.
func Failed(items []Item) int {
	n := 0
	for _, it := range items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// #endregion

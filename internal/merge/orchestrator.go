package merge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/logging"
	"github.com/agbru/blobmerge/internal/metrics"
	"github.com/agbru/blobmerge/internal/parallel"
	"github.com/agbru/blobmerge/internal/payload"
)

var tracer = otel.Tracer("github.com/agbru/blobmerge/internal/merge")

// Dispatcher hands a work unit to a worker and returns a future for its
// result. *parallel.Pool implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, workerID int, unit parallel.WorkUnit) <-chan parallel.WorkResult
	Size() int
}

// Direct concatenates carrier and cargo in memory according to order.
func Direct(carrier, cargo payload.Record, order payload.Order) []byte {
	return payload.Concat(payload.Arrange(carrier.Data, cargo.Data, order))
}

// Options configures an Orchestrator.
type Options struct {
	// ParallelThreshold is the combined payload size, in bytes, from which
	// the parallel path is used. Below it Merge concatenates directly.
	ParallelThreshold int
	// Logger receives debug and error logs. Nil discards.
	Logger logging.Logger
	// Metrics records merge outcomes. Nil records nothing.
	Metrics *metrics.Recorder
	// OnChunk is called after each successful work unit with the number of
	// units completed so far and the total.
	OnChunk func(done, total int)
}

// Orchestrator chooses between the direct and parallel paths and runs the
// parallel partition, dispatch and reassembly.
type Orchestrator struct {
	pool Dispatcher
	opts Options
}

// NewOrchestrator creates an Orchestrator dispatching onto pool.
func NewOrchestrator(pool Dispatcher, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	return &Orchestrator{pool: pool, opts: opts}
}

// Outcome records how a merge was actually carried out.
type Outcome struct {
	// Strategy is metrics.StrategyDirect or metrics.StrategyParallel.
	Strategy string
	// Units is the number of work units dispatched. Zero on the direct path.
	Units int
}

// Merge picks the direct path for inputs below the parallel threshold and
// the parallel path otherwise.
func (o *Orchestrator) Merge(ctx context.Context, carrier, cargo payload.Record, order payload.Order) ([]byte, error) {
	out, _, err := o.MergeOutcome(ctx, carrier, cargo, order)
	return out, err
}

// MergeOutcome is Merge, also reporting the strategy that produced the
// result. An empty side never reaches the pool and is reported as direct.
func (o *Orchestrator) MergeOutcome(ctx context.Context, carrier, cargo payload.Record, order payload.Order) ([]byte, Outcome, error) {
	if carrier.Len()+cargo.Len() < o.opts.ParallelThreshold || o.pool == nil {
		start := time.Now()
		out := Direct(carrier, cargo, order)
		o.opts.Metrics.ObserveMerge(metrics.StrategyDirect, len(out), time.Since(start), nil)
		return out, Outcome{Strategy: metrics.StrategyDirect}, nil
	}
	return o.parallel(ctx, carrier, cargo, order)
}

// Parallel partitions the larger payload into one unit per worker, dispatches
// every unit without waiting, collects the results, restores index order and
// concatenates the smaller payload once. On equal sizes the carrier is the
// payload that gets partitioned.
func (o *Orchestrator) Parallel(ctx context.Context, carrier, cargo payload.Record, order payload.Order) ([]byte, error) {
	out, _, err := o.parallel(ctx, carrier, cargo, order)
	return out, err
}

func (o *Orchestrator) parallel(ctx context.Context, carrier, cargo payload.Record, order payload.Order) (out []byte, outcome Outcome, err error) {
	start := time.Now()
	outcome.Strategy = metrics.StrategyParallel
	defer func() {
		o.opts.Metrics.ObserveMerge(outcome.Strategy, len(out), time.Since(start), err)
	}()

	if cargo.Len() == 0 || carrier.Len() == 0 {
		outcome.Strategy = metrics.StrategyDirect
		if cargo.Len() == 0 {
			return append([]byte(nil), carrier.Data...), outcome, nil
		}
		return append([]byte(nil), cargo.Data...), outcome, nil
	}

	poolSize := o.pool.Size()
	if poolSize <= 0 {
		return nil, outcome, fmt.Errorf("parallel processing failed: %w",
			apperrors.WorkerError{Index: 0, Message: "worker pool is not initialized"})
	}

	ctx, span := tracer.Start(ctx, "merge.parallel")
	defer span.End()

	larger, secondary, effective := carrier.Data, cargo.Data, order
	largerIsCargo := cargo.Len() > carrier.Len()
	if largerIsCargo {
		larger, secondary, effective = cargo.Data, carrier.Data, order.Invert()
	}
	span.SetAttributes(
		attribute.Int("blobmerge.pool_size", poolSize),
		attribute.Int("blobmerge.partitioned_bytes", len(larger)),
		attribute.Bool("blobmerge.cargo_partitioned", largerIsCargo),
	)

	units := Partition(larger, poolSize)
	outcome.Units = len(units)
	for i := range units {
		units[i].Secondary = secondary
		units[i].Order = effective
	}
	o.opts.Logger.Debug("dispatching work units",
		logging.Int("units", len(units)),
		logging.Int("chunk_size", len(units[0].Chunk)),
		logging.String("order", order.String()))

	results, err := o.collect(ctx, units, poolSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker failure")
		return nil, outcome, fmt.Errorf("parallel processing failed: %w", err)
	}

	reconstructed, err := Reassemble(results, len(larger))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reassembly failure")
		return nil, outcome, err
	}

	if largerIsCargo {
		return payload.Concat(payload.Arrange(secondary, reconstructed, order)), outcome, nil
	}
	return payload.Concat(payload.Arrange(reconstructed, secondary, order)), outcome, nil
}

// collect fans out every unit, then waits on all futures. Results are kept in
// arrival order; the first error cancels the wait and discards the rest.
func (o *Orchestrator) collect(ctx context.Context, units []parallel.WorkUnit, poolSize int) ([]parallel.WorkResult, error) {
	futures := make([]<-chan parallel.WorkResult, len(units))
	for i, unit := range units {
		futures[i] = o.pool.Dispatch(ctx, i%poolSize, unit)
	}

	g, gctx := errgroup.WithContext(ctx)
	var (
		mu      sync.Mutex
		results = make([]parallel.WorkResult, 0, len(units))
	)
	for i, future := range futures {
		g.Go(func() error {
			var res parallel.WorkResult
			select {
			case res = <-future:
			case <-gctx.Done():
				return gctx.Err()
			}
			if apperrors.IsContextError(res.Err) {
				return res.Err
			}
			if res.Err != nil {
				o.opts.Metrics.WorkerFailed()
				o.opts.Logger.Error("work unit failed", res.Err, logging.Int("index", units[i].Index))
				return apperrors.WorkerError{Index: units[i].Index, Message: res.Err.Error()}
			}
			o.opts.Metrics.ChunkProcessed()

			mu.Lock()
			results = append(results, res)
			done := len(results)
			mu.Unlock()
			if o.opts.OnChunk != nil {
				o.opts.OnChunk(done, len(units))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

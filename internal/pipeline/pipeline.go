// Package pipeline is the entry point of the merge engine. It reads the
// carrier and the cargo concurrently, then merges them either directly or on
// the worker pool.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/ingest"
	"github.com/agbru/blobmerge/internal/logging"
	"github.com/agbru/blobmerge/internal/merge"
	"github.com/agbru/blobmerge/internal/metrics"
	"github.com/agbru/blobmerge/internal/parallel"
	"github.com/agbru/blobmerge/internal/payload"
	"github.com/agbru/blobmerge/internal/progress"
)

var tracer = otel.Tracer("github.com/agbru/blobmerge/internal/pipeline")

// Progress weights. The carrier read fills [0, 25], the cargo read [0, 50]
// on the same high-water scale, and the merge continues from 50 to 100.
const (
	CarrierWeight = 25.0
	CargoWeight   = 50.0
	Complete      = 100.0
)

// Options controls one Run.
type Options struct {
	Order payload.Order
	// Chunked selects ChunkReader ingestion and the pool-backed merge.
	// Otherwise sources are read in one pass and concatenated directly.
	Chunked   bool
	ChunkSize int
	PoolSize  int
	// ParallelThreshold is the combined size from which the chunked path
	// dispatches onto the pool.
	ParallelThreshold int
	// Progress receives values in [0, 100]. Nil discards.
	Progress progress.Sink
	// RunID tags log lines for this run. Empty generates one.
	RunID string
}

func (o *Options) sink() progress.Sink {
	if o.Progress == nil {
		return progress.Discard{}
	}
	return o.Progress
}

// Pipeline owns the worker pool across runs. Runs are sequential; concurrent
// calls to Run are serialized.
type Pipeline struct {
	logger  logging.Logger
	metrics *metrics.Recorder

	mu    sync.Mutex
	pool  *parallel.Pool
	stale bool
}

// New creates a Pipeline. The pool is started lazily on the first chunked
// merge. Nil logger or recorder are allowed.
func New(logger logging.Logger, recorder *metrics.Recorder) *Pipeline {
	return newPipeline(logger, recorder, parallel.PassThrough{})
}

func newPipeline(logger logging.Logger, recorder *metrics.Recorder, task parallel.Task) *Pipeline {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Pipeline{
		logger:  logger,
		metrics: recorder,
		pool:    parallel.NewPool(task, logger),
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Run reads both sources and merges them.
func (p *Pipeline) Run(ctx context.Context, carrier, cargo ingest.Source, opts Options) ([]byte, error) {
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	carrierRec, cargoRec, err := p.Read(ctx, carrier, cargo, opts)
	if err != nil {
		return nil, err
	}
	return p.Merge(ctx, carrierRec, cargoRec, opts)
}

// Read loads carrier and cargo concurrently. Either failure aborts both and
// is reported as "read files: <cause>".
func (p *Pipeline) Read(ctx context.Context, carrier, cargo ingest.Source, opts Options) (carrierRec, cargoRec payload.Record, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.read")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("blobmerge.chunked", opts.Chunked),
		attribute.Int64("blobmerge.carrier_bytes", carrier.Size()),
		attribute.Int64("blobmerge.cargo_bytes", cargo.Size()),
	)

	var reader ingest.Reader = ingest.WholeFileReader{}
	if opts.Chunked {
		reader = ingest.ChunkReader{ChunkSize: opts.ChunkSize}
	}
	sink := opts.sink()
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := reader.Read(gctx, carrier, sink, CarrierWeight)
		carrierRec = rec
		return err
	})
	g.Go(func() error {
		rec, err := reader.Read(gctx, cargo, sink, CargoWeight)
		cargoRec = rec
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failure")
		p.logger.Error("read failed", err, logging.String("run_id", opts.RunID))
		return payload.Record{}, payload.Record{}, fmt.Errorf("read files: %w", err)
	}

	p.logger.Debug("sources loaded",
		logging.String("run_id", opts.RunID),
		logging.Int("carrier_bytes", carrierRec.Len()),
		logging.Int("cargo_bytes", cargoRec.Len()),
		logging.Duration("elapsed", time.Since(start)))
	return carrierRec, cargoRec, nil
}

// Merge combines two loaded records according to opts. A failed parallel
// merge marks the pool for re-initialization before the next merge.
func (p *Pipeline) Merge(ctx context.Context, carrier, cargo payload.Record, opts Options) ([]byte, error) {
	out, _, err := p.MergeOutcome(ctx, carrier, cargo, opts)
	return out, err
}

// MergeOutcome is Merge, also reporting which strategy produced the bytes.
func (p *Pipeline) MergeOutcome(ctx context.Context, carrier, cargo payload.Record, opts Options) ([]byte, merge.Outcome, error) {
	ctx, span := tracer.Start(ctx, "pipeline.merge")
	defer span.End()

	sink := opts.sink()
	if !opts.Chunked {
		start := time.Now()
		out := merge.Direct(carrier, cargo, opts.Order)
		p.metrics.ObserveMerge(metrics.StrategyDirect, len(out), time.Since(start), nil)
		sink.Report(Complete)
		return out, merge.Outcome{Strategy: metrics.StrategyDirect}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensurePool(opts.PoolSize); err != nil {
		span.RecordError(err)
		return nil, merge.Outcome{}, err
	}
	orch := merge.NewOrchestrator(p.pool, merge.Options{
		ParallelThreshold: opts.ParallelThreshold,
		Logger:            p.logger,
		Metrics:           p.metrics,
		OnChunk:           progress.Span(sink, CargoWeight, Complete),
	})

	p.logger.Debug("merging",
		logging.String("run_id", opts.RunID),
		logging.Int("pool_size", opts.PoolSize),
		logging.String("order", opts.Order.String()))

	out, outcome, err := orch.MergeOutcome(ctx, carrier, cargo, opts.Order)
	if err != nil {
		p.stale = true
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failure")
		p.logger.Error("merge failed", err, logging.String("run_id", opts.RunID))
		return nil, outcome, err
	}
	span.SetAttributes(attribute.String("blobmerge.strategy", outcome.Strategy))
	sink.Report(Complete)
	return out, outcome, nil
}

// ensurePool starts the pool, or restarts it when the size changed or the
// previous merge failed or a worker panicked. Callers hold p.mu.
func (p *Pipeline) ensurePool(size int) error {
	if size <= 0 {
		return apperrors.NewConfigError("pool size must be positive, got %d", size)
	}
	if !p.stale && p.pool.Err() == nil && p.pool.Size() == size {
		return nil
	}
	if err := p.pool.Initialize(size); err != nil {
		return err
	}
	p.stale = false
	return nil
}

// Close stops the worker pool.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.Shutdown()
}

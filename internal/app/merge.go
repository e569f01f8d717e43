package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/agbru/blobmerge/internal/cli"
	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/export"
	"github.com/agbru/blobmerge/internal/ingest"
	"github.com/agbru/blobmerge/internal/logging"
	"github.com/agbru/blobmerge/internal/merge"
	"github.com/agbru/blobmerge/internal/metrics"
	"github.com/agbru/blobmerge/internal/payload"
	"github.com/agbru/blobmerge/internal/pipeline"
	"github.com/agbru/blobmerge/internal/progress"
	"github.com/agbru/blobmerge/internal/scrub"
	"github.com/agbru/blobmerge/internal/tui"
	"github.com/agbru/blobmerge/internal/validate"
)

// runMerge opens and validates the inputs, runs the pipeline, optionally
// verifies the result and exports it.
func (a *Application) runMerge(ctx context.Context, out io.Writer) error {
	cfg := a.Config
	start := time.Now()
	mem := metrics.NewMemoryCollector()
	before := mem.Snapshot()

	carrier, err := ingest.Open(cfg.Carrier)
	if err != nil {
		return apperrors.ReadError{Name: cfg.Carrier, Cause: err}
	}
	defer carrier.Close()
	cargo, err := ingest.Open(cfg.Cargo)
	if err != nil {
		return apperrors.ReadError{Name: cfg.Cargo, Cause: err}
	}
	defer cargo.Close()

	if err := (validate.ImageValidator{}).Validate(carrier, cfg.MaxSize); err != nil {
		return err
	}
	if err := (validate.ArchiveValidator{}).Validate(cargo, cfg.MaxSize); err != nil {
		return err
	}

	if !cfg.Quiet {
		cli.PrintExecutionConfig(cfg, carrier.Size(), cargo.Size(), out)
	}

	runID := pipeline.NewRunID()
	logger := a.Logger
	if z, ok := logger.(*logging.ZerologAdapter); ok {
		logger = z.With(logging.String("run_id", runID))
	}

	p := pipeline.New(logger, a.Metrics)
	defer p.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	scale := progress.NewScale(pipeline.Complete)
	stopProgress := a.startProgress(scale, cancel, out)
	defer stopProgress()

	opts := pipeline.Options{
		Order:             cfg.MergeOrder(),
		Chunked:           cfg.Chunked,
		ChunkSize:         cfg.ChunkSize,
		PoolSize:          cfg.Workers,
		ParallelThreshold: cfg.ParallelThreshold,
		Progress:          scale,
		RunID:             runID,
	}

	carrierRec, cargoRec, err := p.Read(ctx, carrier, cargo, opts)
	if err != nil {
		return err
	}
	if err := a.checkSignature(cargoRec, out); err != nil {
		return err
	}
	carrierRec, err = a.scrubCarrier(carrierRec)
	if err != nil {
		return err
	}

	blob, outcome, err := p.MergeOutcome(ctx, carrierRec, cargoRec, opts)
	if err != nil {
		return err
	}
	stopProgress()

	summary := cli.Summary{
		RunID:    runID,
		Carrier:  cli.FileInfo{Name: carrier.Name(), Size: carrier.Size()},
		Cargo:    cli.FileInfo{Name: cargo.Name(), Size: cargo.Size()},
		Order:    opts.Order.String(),
		Strategy: outcome.Strategy,
		Workers:  outcome.Units,
		Size:     len(blob),
		Digest:   cli.Digest(blob),
	}

	if cfg.Verify {
		ok := cli.Digest(merge.Direct(carrierRec, cargoRec, opts.Order)) == summary.Digest
		summary.Verified = &ok
		if !ok {
			return apperrors.MergeError{Cause: errVerifyMismatch}
		}
	}

	name := export.OutputName(cfg.Carrier, cfg.Format, cfg.Extension)
	loc, err := a.Exporter.Export(ctx, blob, name)
	if err != nil {
		return fmt.Errorf("export result: %w", err)
	}
	summary.Location = loc
	summary.Duration = time.Since(start)

	logger.Info("merge complete",
		logging.String("output", loc),
		logging.Int("bytes", len(blob)),
		logging.Duration("elapsed", summary.Duration))

	if cfg.Quiet {
		cli.DisplayQuietResult(out, summary)
		return nil
	}
	cli.DisplaySummary(out, summary)
	if cfg.Verbose {
		after := mem.Snapshot()
		fmt.Fprintf(out, "Memory: %s allocated, peak heap %s, %d GC cycles\n",
			humanize.IBytes(mem.AllocatedSince(before)), humanize.IBytes(after.HeapAlloc), after.NumGC-before.NumGC)
	}
	return nil
}

// startProgress shows the spinner, or the interactive view with -tui, unless
// quiet. The returned stop function is idempotent.
func (a *Application) startProgress(scale *progress.Scale, cancel context.CancelFunc, out io.Writer) func() {
	if a.Config.Quiet {
		return func() {}
	}
	if a.Config.TUI {
		return tui.Display(scale, cancel, a.Input, out)
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		cli.DisplayProgress(done, scale, out)
	}()
	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		<-finished
	}
}

// checkSignature warns, or fails in strict mode, when the cargo does not
// carry an archive signature within the scan limit.
func (a *Application) checkSignature(cargo payload.Record, out io.Writer) error {
	if validate.ContainsSignature(cargo.Data, validate.RarSignature, a.Config.SignatureLimit) {
		return nil
	}
	msg := fmt.Sprintf("%s has no RAR signature in its first %s", cargo.Name,
		humanize.IBytes(uint64(a.Config.SignatureLimit)))
	if a.Config.StrictSignature {
		return apperrors.ValidationError{Field: "cargo", Message: msg}
	}
	if !a.Config.Quiet {
		cli.DisplayWarning(out, msg)
	}
	a.Logger.Info("archive signature missing", logging.String("file", cargo.Name))
	return nil
}

func (a *Application) scrubCarrier(rec payload.Record) (payload.Record, error) {
	settings := scrub.Settings{EXIF: a.Config.StripEXIF, XMP: a.Config.StripXMP, IPTC: a.Config.StripIPTC}
	if !settings.Any() {
		return rec, nil
	}
	scrubbed, err := scrub.JPEGScrubber{}.Scrub(rec, settings)
	if err != nil {
		return rec, apperrors.ValidationError{Field: "carrier", Message: err.Error()}
	}
	a.Logger.Debug("carrier scrubbed",
		logging.Int("before", rec.Len()),
		logging.Int("after", scrubbed.Len()))
	return scrubbed, nil
}
